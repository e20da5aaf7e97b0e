package inbox

import "time"

// AutomationPaused reports whether automated follow-ups are paused for a
// conversation. A single outbound message sent by a human pauses automation;
// inbound messages and automated outbound messages never do. The result is
// derived from message history alone, so any two callers with the same
// messages agree.
func AutomationPaused(messages []Message) bool {
	for _, m := range messages {
		if m.Direction == DirectionOutbound && !m.Automated {
			return true
		}
	}
	return false
}

// DayGroup is a run of consecutive messages that share a calendar day.
type DayGroup struct {
	Day      time.Time
	Messages []Message
}

// GroupMessagesByDay splits an ordered message slice into per-day groups,
// preserving order. Days are computed in the local timezone of each
// message's timestamp.
func GroupMessagesByDay(messages []Message) []DayGroup {
	var groups []DayGroup
	for _, m := range messages {
		day := truncateToDay(m.CreatedAt)
		if n := len(groups); n > 0 && groups[n-1].Day.Equal(day) {
			groups[n-1].Messages = append(groups[n-1].Messages, m)
			continue
		}
		groups = append(groups, DayGroup{Day: day, Messages: []Message{m}})
	}
	return groups
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayLabel renders a day header the way the thread view shows it: "Today",
// "Yesterday", or a date.
func DayLabel(day, now time.Time) string {
	today := truncateToDay(now)
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	case day.Year() == today.Year():
		return day.Format("Mon, Jan 2")
	default:
		return day.Format("Jan 2, 2006")
	}
}
