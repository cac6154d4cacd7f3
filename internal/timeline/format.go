package timeline

import (
	"time"

	"chatsync/internal/constants"
	"chatsync/internal/models"
)

const (
	dateKeyLayout        = "2006-01-02"
	timeLabelLayout      = "3:04 PM"
	sameYearLabelLayout  = "Jan 2"
	otherYearLabelLayout = "Jan 2, 2006"
)

// FormatMessageTime renders the clock time of a message timestamp in loc.
func FormatMessageTime(timestamp string, loc *time.Location) string {
	t, ok := models.ParseTimestamp(timestamp, loc)
	if !ok {
		return constants.InvalidTimeLabel
	}
	return t.In(locationOrLocal(loc)).Format(timeLabelLayout)
}

// FormatDateLabel renders a group header for day relative to now.
// Both are compared as calendar dates in now's location.
func FormatDateLabel(day, now time.Time) string {
	day = day.In(now.Location())
	if sameDate(day, now) {
		return "Today"
	}
	if sameDate(day, now.AddDate(0, 0, -1)) {
		return "Yesterday"
	}
	if day.Year() == now.Year() {
		return day.Format(sameYearLabelLayout)
	}
	return day.Format(otherYearLabelLayout)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func locationOrLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
