package timeline

import (
	"sort"
	"time"

	"chatsync/internal/constants"
	"chatsync/internal/models"
)

type dayBucket struct {
	key      string
	day      time.Time
	messages []models.Message
}

// GroupByDay buckets messages by calendar day in loc.
//
// Groups are ordered by ascending date and keep the input order inside each
// day. Messages whose timestamp cannot be parsed share one trailing group.
// GroupByDay does not modify messages.
func GroupByDay(messages []models.Message, now time.Time, loc *time.Location) []models.MessageGroup {
	if len(messages) == 0 {
		return []models.MessageGroup{}
	}
	loc = locationOrLocal(loc)
	now = now.In(loc)

	index := make(map[string]*dayBucket)
	var buckets []*dayBucket
	var invalid []models.Message

	for _, msg := range messages {
		t, ok := msg.Time(loc)
		if !ok {
			invalid = append(invalid, msg)
			continue
		}
		t = t.In(loc)
		key := t.Format(dateKeyLayout)
		b, exists := index[key]
		if !exists {
			y, m, d := t.Date()
			b = &dayBucket{key: key, day: time.Date(y, m, d, 0, 0, 0, 0, loc)}
			index[key] = b
			buckets = append(buckets, b)
		}
		b.messages = append(b.messages, msg)
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].day.Before(buckets[j].day)
	})

	groups := make([]models.MessageGroup, 0, len(buckets)+1)
	for _, b := range buckets {
		groups = append(groups, models.MessageGroup{
			DateKey:  b.key,
			Label:    FormatDateLabel(b.day, now),
			Messages: b.messages,
		})
	}
	if len(invalid) > 0 {
		groups = append(groups, models.MessageGroup{
			DateKey:  constants.InvalidDateKey,
			Label:    constants.InvalidDateLabel,
			Messages: invalid,
		})
	}
	return groups
}

// SortByTimestamp orders messages ascending by timestamp in place.
// Unparseable timestamps sort last; ties keep their input order.
func SortByTimestamp(messages []models.Message, loc *time.Location) {
	loc = locationOrLocal(loc)
	type keyed struct {
		msg models.Message
		t   time.Time
		ok  bool
	}
	items := make([]keyed, len(messages))
	for i, msg := range messages {
		t, ok := msg.Time(loc)
		items[i] = keyed{msg: msg, t: t, ok: ok}
	}

	sort.SliceStable(items, func(a, b int) bool {
		if items[a].ok != items[b].ok {
			return items[a].ok
		}
		return items[a].ok && items[a].t.Before(items[b].t)
	})

	for i := range items {
		messages[i] = items[i].msg
	}
}
