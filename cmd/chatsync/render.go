package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	apperrors "chatsync/internal/errors"
	"chatsync/internal/models"
	"chatsync/internal/service"
	"chatsync/internal/timeline"
	"chatsync/internal/validation"
)

// interactiveSession is what the stdin loop needs from a ConversationSession.
type interactiveSession interface {
	Snapshot() service.Snapshot
	Send(ctx context.Context, content string) (models.Message, error)
	Changes() <-chan struct{}
}

// runInteractive submits every stdin line as a message and prints the
// timeline after each change. It returns when ctx is done or stdin ends.
func runInteractive(ctx context.Context, session interactiveSession, in io.Reader, out io.Writer, loc *time.Location) error {
	lines := make(chan string)
	scanDone := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanDone <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-session.Changes():
			renderTimeline(out, session.Snapshot(), loc)

		case line := <-lines:
			if err := validation.ValidateMessageContent(line); err != nil {
				fmt.Fprintf(out, "! %s\n", apperrors.GetUserMessage(err))
				continue
			}
			if _, err := session.Send(ctx, line); err != nil {
				fmt.Fprintf(out, "! %s\n", apperrors.GetUserMessage(err))
			}

		case err := <-scanDone:
			renderTimeline(out, session.Snapshot(), loc)
			return err
		}
	}
}

// renderTimeline prints snap as day sections with one line per message.
func renderTimeline(w io.Writer, snap service.Snapshot, loc *time.Location) {
	var b strings.Builder

	state := "offline"
	if snap.Connected {
		state = "online"
	}
	fmt.Fprintf(&b, "== %s (%s) ==\n", snap.Title, state)
	if snap.Error != "" {
		fmt.Fprintf(&b, "! %s\n", snap.Error)
	}

	if len(snap.Groups) == 0 {
		b.WriteString("No messages yet.\n")
	}
	for _, group := range snap.Groups {
		fmt.Fprintf(&b, "-- %s --\n", group.Label)
		for _, m := range group.Messages {
			fmt.Fprintf(&b, "%s  %s: %s", timeline.FormatMessageTime(m.Timestamp, loc), m.Sender, m.Content)
			if marker := statusMarker(m); marker != "" {
				b.WriteString("  " + marker)
			}
			b.WriteByte('\n')
		}
	}

	if snap.IsTyping {
		b.WriteString("typing...\n")
	}
	io.WriteString(w, b.String())
}

// statusMarker mirrors the delivery icons shown next to outgoing messages.
func statusMarker(m models.Message) string {
	if !m.IsFromMe {
		return ""
	}
	switch {
	case m.Failed:
		return "(!) failed"
	case m.Pending:
		return "(sending)"
	}
	switch m.Status {
	case models.StatusSent:
		return "✓"
	case models.StatusDelivered:
		return "✓✓"
	case models.StatusRead:
		return "✓✓ read"
	}
	return ""
}
