// Package metrics exports engine state and ingestion outcomes to Prometheus.
package metrics

import (
	"errors"

	"github.com/GetStream/chat-state-engine/chat"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector is a chat.Listener that keeps gauges of the conversation list
// and counts change notifications and rejected events.
type Collector struct {
	conversations   prometheus.Gauge
	unreadMessages  prometheus.Gauge
	typing          prometheus.Gauge
	listChanges     prometheus.Counter
	timelineChanges prometheus.Counter
	rejected        *prometheus.CounterVec
}

// New creates a Collector and registers it with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		conversations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatstate_conversations",
			Help: "Number of conversations held by the engine.",
		}),
		unreadMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatstate_unread_messages",
			Help: "Sum of unread counters across conversations.",
		}),
		typing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatstate_typing_conversations",
			Help: "Number of conversations with an active typing indicator.",
		}),
		listChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatstate_conversation_list_changes_total",
			Help: "Total number of conversation list change notifications.",
		}),
		timelineChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatstate_timeline_changes_total",
			Help: "Total number of timeline change notifications.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatstate_rejected_events_total",
			Help: "Total number of events the engine rejected, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		c.conversations,
		c.unreadMessages,
		c.typing,
		c.listChanges,
		c.timelineChanges,
		c.rejected,
	)
	return c
}

func (c *Collector) ConversationListChanged(list []chat.Summary) {
	c.listChanges.Inc()

	unread, typing := 0, 0
	for _, s := range list {
		unread += s.UnreadCount
		if s.IsTyping {
			typing++
		}
	}
	c.conversations.Set(float64(len(list)))
	c.unreadMessages.Set(float64(unread))
	c.typing.Set(float64(typing))
}

func (c *Collector) TimelineChanged(string, []chat.DateGroup) {
	c.timelineChanges.Inc()
}

// ObserveRejection counts an error returned by the engine. Nil errors are
// ignored.
func (c *Collector) ObserveRejection(err error) {
	if err == nil {
		return
	}
	c.rejected.WithLabelValues(Reason(err)).Inc()
}

// Reason classifies an engine error for the reason label.
func Reason(err error) string {
	var (
		verr *chat.ValidationError
		terr *chat.InvalidTransitionError
		nerr *chat.NotFoundError
	)
	switch {
	case errors.As(err, &verr):
		return "validation"
	case errors.As(err, &terr):
		return "invalid_transition"
	case errors.As(err, &nerr):
		return "not_found"
	default:
		return "other"
	}
}
