package chat

import (
	"iter"
	"time"
)

// An Entry is a message placed in a timeline.
type Entry struct {
	Message
	// Own is set for messages sent by the local user.
	Own bool `json:"own"`
	// ShowAvatar is set on the first message of a run of consecutive
	// messages from the same remote sender within a day.
	ShowAvatar bool `json:"show_avatar"`
}

// A DateGroup holds the messages of one calendar day.
type DateGroup struct {
	// Day is midnight of the calendar day in the viewer's time zone.
	Day     time.Time `json:"day"`
	Entries []Entry   `json:"entries"`
}

// ProjectTimeline partitions msgs, which must be in timeline order, into
// calendar days of loc. A message belongs to the day its CreatedAt falls on
// in loc, regardless of how many hours separate it from its neighbours.
func ProjectTimeline(msgs iter.Seq[Message], loc *time.Location, localUserID string) []DateGroup {
	groups := []DateGroup{}
	for m := range msgs {
		day := startOfDay(m.CreatedAt, loc)
		if n := len(groups); n == 0 || !groups[n-1].Day.Equal(day) {
			groups = append(groups, DateGroup{Day: day})
		}
		g := &groups[len(groups)-1]

		own := m.SenderID == localUserID
		show := !own
		if n := len(g.Entries); show && n > 0 && g.Entries[n-1].SenderID == m.SenderID {
			show = false
		}
		g.Entries = append(g.Entries, Entry{Message: m, Own: own, ShowAvatar: show})
	}
	return groups
}

// Timeline projects a conversation's messages in the engine's time zone.
func (e *Engine) Timeline(conversationID string) ([]DateGroup, error) {
	msgs, err := e.MessagesFor(conversationID)
	if err != nil {
		return nil, err
	}
	return ProjectTimeline(msgs, e.loc, e.localUserID), nil
}

// DayLabel names a date group relative to now: "Today", "Yesterday", or the
// date in long form.
func DayLabel(day, now time.Time) string {
	today := startOfDay(now, day.Location())
	d := startOfDay(day, day.Location())
	switch {
	case d.Equal(today):
		return "Today"
	case d.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return d.Format("January 2, 2006")
	}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
