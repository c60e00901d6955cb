package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/GetStream/chat-state-engine/chat"
	"github.com/neilotoole/slogt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector(t *testing.T) {
	c := New(prometheus.NewRegistry())

	e, err := chat.New(chat.Options{LocalUserID: "1", Location: time.UTC, Logger: slogt.New(t)})
	if err != nil {
		t.Fatal(err)
	}
	e.Subscribe(c)

	err = e.Upsert(chat.Conversation{
		ID:           "c1",
		Kind:         chat.Direct,
		Participants: []chat.User{{ID: "1", Name: "You"}, {ID: "2", Name: "Sarah Wilson"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := e.OnMessageReceived(chat.Message{ConversationID: "c1", SenderID: "2", Content: "hi"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.OnTypingChanged("c1", "2"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		collector prometheus.Collector
		want      float64
	}{
		{name: "Conversations", collector: c.conversations, want: 1},
		{name: "Unread", collector: c.unreadMessages, want: 3},
		{name: "Typing", collector: c.typing, want: 1},
		{name: "ListChanges", collector: c.listChanges, want: 5},
		{name: "TimelineChanges", collector: c.timelineChanges, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.collector); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCollector_ObserveRejection(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.ObserveRejection(nil)
	c.ObserveRejection(&chat.ValidationError{Field: "content", Reason: "must not be blank"})
	c.ObserveRejection(fmt.Errorf("wrapped: %w", &chat.ValidationError{}))
	c.ObserveRejection(&chat.InvalidTransitionError{From: chat.StatusRead, To: chat.StatusSent})
	c.ObserveRejection(&chat.NotFoundError{Kind: "message", ID: "x"})
	c.ObserveRejection(errors.New("boom"))

	tests := []struct {
		reason string
		want   float64
	}{
		{reason: "validation", want: 2},
		{reason: "invalid_transition", want: 1},
		{reason: "not_found", want: 1},
		{reason: "other", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			if got := testutil.ToFloat64(c.rejected.WithLabelValues(tt.reason)); got != tt.want {
				t.Errorf("rejected{reason=%q} = %v, want %v", tt.reason, got, tt.want)
			}
		})
	}
}
