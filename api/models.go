package api

import (
	"time"

	"github.com/GetStream/chat-state-engine/chat"
)

// A DateGroup is a timeline day as rendered over HTTP.
type DateGroup struct {
	Day     string       `json:"day"`
	Label   string       `json:"label"`
	Entries []chat.Entry `json:"entries"`
}

func newDateGroups(groups []chat.DateGroup, now time.Time) []DateGroup {
	out := make([]DateGroup, len(groups))
	for i, g := range groups {
		out[i] = DateGroup{
			Day:     g.Day.Format(time.DateOnly),
			Label:   chat.DayLabel(g.Day, now),
			Entries: g.Entries,
		}
	}
	return out
}

type sendMessageRequest struct {
	Content   string `json:"content" validate:"notblank"`
	Kind      string `json:"kind" validate:"omitempty,oneof=text image audio file"`
	ReplyToID string `json:"reply_to_id"`
	FileURL   string `json:"file_url"`
}

type receiveMessageRequest struct {
	ID             string    `json:"id" validate:"required"`
	ConversationID string    `json:"conversation_id" validate:"required"`
	SenderID       string    `json:"sender_id" validate:"required"`
	Content        string    `json:"content" validate:"notblank"`
	Kind           string    `json:"kind" validate:"omitempty,oneof=text image audio file"`
	CreatedAt      time.Time `json:"created_at"`
	ReplyToID      string    `json:"reply_to_id"`
	FileURL        string    `json:"file_url"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=sent delivered read"`
}

type reactionRequest struct {
	Reaction string `json:"reaction" validate:"notblank"`
}

type typingRequest struct {
	UserID string `json:"user_id"`
}

type presenceRequest struct {
	Presence string `json:"presence" validate:"required,oneof=online away offline"`
}
