package chat

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/neilotoole/slogt"
)

var (
	you   = User{ID: "1", Name: "You", Presence: PresenceOnline}
	sarah = User{ID: "2", Name: "Sarah Wilson", AvatarURL: "sarah.svg", Presence: PresenceOnline}
	mike  = User{ID: "3", Name: "Mike Chen", AvatarURL: "mike.svg", Presence: PresenceOffline}
	emma  = User{ID: "4", Name: "Emma Davis", Presence: PresenceOnline}
	alex  = User{ID: "5", Name: "Alex Johnson", Presence: PresenceAway}

	// epoch is the fixed start of the test clock.
	epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	ignoreSeq = cmpopts.IgnoreUnexported(Message{})
)

// testClock returns a clock that advances by one minute on every reading.
func testClock() func() time.Time {
	now := epoch
	return func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
}

// testIDs returns an id generator yielding m1, m2, ...
func testIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("m%d", n)
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Options{
		LocalUserID: you.ID,
		Location:    time.UTC,
		Now:         testClock(),
		NewID:       testIDs(),
		Logger:      slogt.New(t),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

// seedEngine returns an engine holding the conversations of the demo
// roster: direct chats with Sarah (c1) and Mike (c2) and the Design Team
// group (c4). None of them has messages.
func seedEngine(t *testing.T) *Engine {
	t.Helper()
	e := newTestEngine(t)
	convs := []Conversation{
		{ID: "c1", Kind: Direct, Participants: []User{you, sarah}, CreatedAt: epoch.Add(-3 * time.Hour)},
		{ID: "c2", Kind: Direct, Participants: []User{you, mike}, CreatedAt: epoch.Add(-2 * time.Hour)},
		{
			ID:           "c4",
			Kind:         Group,
			Name:         "Design Team",
			AvatarURL:    "design.svg",
			Participants: []User{you, sarah, mike, emma, alex},
			CreatedAt:    epoch.Add(-1 * time.Hour),
		},
	}
	for _, c := range convs {
		if err := e.Upsert(c); err != nil {
			t.Fatalf("Upsert(%s) error = %v", c.ID, err)
		}
	}
	return e
}

func mustAppend(t *testing.T, e *Engine, m Message) Message {
	t.Helper()
	got, err := e.Append(m)
	if err != nil {
		t.Fatalf("Append(%+v) error = %v", m, err)
	}
	return got
}

func checkErrorAs[T error](t *testing.T, err error) T {
	t.Helper()
	var target T
	if !errors.As(err, &target) {
		t.Fatalf("error = %v (%T), want %T", err, err, target)
	}
	return target
}

func TestNew(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("New() without a local user: expected error")
	} else {
		checkErrorAs[*ValidationError](t, err)
	}

	e, err := New(Options{LocalUserID: "1"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if e.Location() != time.Local {
		t.Errorf("Location() = %v, want time.Local", e.Location())
	}
	if e.LocalUserID() != "1" {
		t.Errorf("LocalUserID() = %q, want %q", e.LocalUserID(), "1")
	}
}

func TestEngine_Version(t *testing.T) {
	e := seedEngine(t)
	v := e.Version()

	if err := e.MarkRead("c1"); err != nil {
		t.Fatal(err)
	}
	if e.Version() != v {
		t.Error("MarkRead on a read conversation changed the version")
	}

	mustAppend(t, e, Message{ConversationID: "c1", SenderID: sarah.ID, Content: "hi"})
	if e.Version() == v {
		t.Error("Append did not change the version")
	}
}
