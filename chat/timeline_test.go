package chat

import (
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type entryView struct {
	ID         string
	Own        bool
	ShowAvatar bool
}

func viewGroups(groups []DateGroup) map[string][]entryView {
	out := make(map[string][]entryView, len(groups))
	for _, g := range groups {
		key := g.Day.Format(time.DateOnly)
		for _, en := range g.Entries {
			out[key] = append(out[key], entryView{ID: en.ID, Own: en.Own, ShowAvatar: en.ShowAvatar})
		}
	}
	return out
}

func TestProjectTimeline(t *testing.T) {
	day := func(d, h, m int) time.Time { return time.Date(2024, 1, d, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name string
		msgs []Message
		want map[string][]entryView
	}{
		{
			name: "Empty",
			want: map[string][]entryView{},
		},
		{
			name: "MidnightSplitsDays",
			msgs: []Message{
				{ID: "a", SenderID: sarah.ID, CreatedAt: day(1, 23, 59)},
				{ID: "b", SenderID: sarah.ID, CreatedAt: day(2, 0, 1)},
			},
			want: map[string][]entryView{
				"2024-01-01": {{ID: "a", ShowAvatar: true}},
				"2024-01-02": {{ID: "b", ShowAvatar: true}},
			},
		},
		{
			name: "CollapseSameSender",
			msgs: []Message{
				{ID: "a", SenderID: sarah.ID, CreatedAt: day(1, 10, 0)},
				{ID: "b", SenderID: sarah.ID, CreatedAt: day(1, 10, 1)},
				{ID: "c", SenderID: sarah.ID, CreatedAt: day(1, 10, 2)},
				{ID: "d", SenderID: mike.ID, CreatedAt: day(1, 10, 3)},
			},
			want: map[string][]entryView{
				"2024-01-01": {
					{ID: "a", ShowAvatar: true},
					{ID: "b"},
					{ID: "c"},
					{ID: "d", ShowAvatar: true},
				},
			},
		},
		{
			name: "OwnMessagesNeverShowAvatar",
			msgs: []Message{
				{ID: "a", SenderID: you.ID, CreatedAt: day(1, 10, 0)},
				{ID: "b", SenderID: sarah.ID, CreatedAt: day(1, 10, 1)},
				{ID: "c", SenderID: you.ID, CreatedAt: day(1, 10, 2)},
				{ID: "d", SenderID: sarah.ID, CreatedAt: day(1, 10, 3)},
			},
			want: map[string][]entryView{
				"2024-01-01": {
					{ID: "a", Own: true},
					{ID: "b", ShowAvatar: true},
					{ID: "c", Own: true},
					{ID: "d", ShowAvatar: true},
				},
			},
		},
		{
			name: "NewDayResetsCollapse",
			msgs: []Message{
				{ID: "a", SenderID: sarah.ID, CreatedAt: day(1, 22, 0)},
				{ID: "b", SenderID: sarah.ID, CreatedAt: day(2, 8, 0)},
				{ID: "c", SenderID: sarah.ID, CreatedAt: day(2, 8, 1)},
			},
			want: map[string][]entryView{
				"2024-01-01": {{ID: "a", ShowAvatar: true}},
				"2024-01-02": {{ID: "b", ShowAvatar: true}, {ID: "c"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := ProjectTimeline(slices.Values(tt.msgs), time.UTC, you.ID)
			if diff := cmp.Diff(tt.want, viewGroups(groups)); diff != "" {
				t.Errorf("ProjectTimeline() mismatch (-want +got):\n%s", diff)
			}
			for i := 1; i < len(groups); i++ {
				if !groups[i-1].Day.Before(groups[i].Day) {
					t.Errorf("groups out of order: %v then %v", groups[i-1].Day, groups[i].Day)
				}
			}
		})
	}
}

func TestProjectTimeline_location(t *testing.T) {
	// 20:00 UTC on Jan 1 and 02:00 UTC on Jan 2 are both Jan 2 in UTC+9,
	// and different days in UTC.
	tokyo := time.FixedZone("UTC+9", 9*60*60)
	msgs := []Message{
		{ID: "a", SenderID: sarah.ID, CreatedAt: time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)},
		{ID: "b", SenderID: sarah.ID, CreatedAt: time.Date(2024, 1, 2, 2, 0, 0, 0, time.UTC)},
	}

	if got := len(ProjectTimeline(slices.Values(msgs), time.UTC, you.ID)); got != 2 {
		t.Errorf("UTC: got %d groups, want 2", got)
	}
	groups := ProjectTimeline(slices.Values(msgs), tokyo, you.ID)
	if len(groups) != 1 {
		t.Fatalf("UTC+9: got %d groups, want 1", len(groups))
	}
	if want := time.Date(2024, 1, 2, 0, 0, 0, 0, tokyo); !groups[0].Day.Equal(want) {
		t.Errorf("UTC+9: Day = %v, want %v", groups[0].Day, want)
	}
}

func TestEngine_Timeline(t *testing.T) {
	e := seedEngine(t)
	mustAppend(t, e, Message{ID: "a", ConversationID: "c4", SenderID: sarah.ID, Content: "one", CreatedAt: epoch})
	mustAppend(t, e, Message{ID: "b", ConversationID: "c4", SenderID: you.ID, Content: "two", CreatedAt: epoch.Add(time.Minute)})

	groups, err := e.Timeline("c4")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string][]entryView{
		"2024-01-01": {{ID: "a", ShowAvatar: true}, {ID: "b", Own: true}},
	}
	if diff := cmp.Diff(want, viewGroups(groups)); diff != "" {
		t.Errorf("Timeline() mismatch (-want +got):\n%s", diff)
	}

	_, err = e.Timeline("nope")
	checkErrorAs[*NotFoundError](t, err)
}

func TestDayLabel(t *testing.T) {
	now := time.Date(2024, 3, 10, 0, 30, 0, 0, time.UTC)

	tests := []struct {
		day  time.Time
		want string
	}{
		{day: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), want: "Today"},
		{day: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), want: "Yesterday"},
		{day: time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), want: "March 8, 2024"},
		{day: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), want: "December 31, 2023"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := DayLabel(tt.day, now); got != tt.want {
				t.Errorf("DayLabel(%v) = %q, want %q", tt.day, got, tt.want)
			}
		})
	}
}
