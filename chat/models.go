package chat

import (
	"strconv"
	"time"
)

// Presence is a user's online indicator. It is independent of typing state.
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceAway    Presence = "away"
	PresenceOffline Presence = "offline"
)

// A User is a participant of one or more conversations.
type User struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url"`
	Presence  Presence  `json:"presence" validate:"omitempty,oneof=online away offline"`
	LastSeen  time.Time `json:"last_seen,omitzero"`
	Bio       string    `json:"bio,omitempty"`
}

// MessageKind is the kind of content a message carries.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindAudio MessageKind = "audio"
	KindFile  MessageKind = "file"
)

// Status is the read-receipt state of a message. Statuses only move forward:
// sent, then delivered, then read.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// rank returns the position of s in the receipt lifecycle, or -1 for an
// unknown status.
func (s Status) rank() int {
	switch s {
	case StatusSent:
		return 0
	case StatusDelivered:
		return 1
	case StatusRead:
		return 2
	default:
		return -1
	}
}

// A Message belongs to exactly one conversation. Only Status and Reactions
// change after it is stored.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id" validate:"required"`
	SenderID       string      `json:"sender_id" validate:"required"`
	Content        string      `json:"content" validate:"notblank"`
	Kind           MessageKind `json:"kind" validate:"omitempty,oneof=text image audio file"`
	Status         Status      `json:"status" validate:"omitempty,oneof=sent delivered read"`
	CreatedAt      time.Time   `json:"created_at"`
	Reactions      []string    `json:"reactions,omitempty"`
	ReplyToID      string      `json:"reply_to_id,omitempty"`
	FileURL        string      `json:"file_url,omitempty"`

	// seq is the store's insertion sequence, used to order messages that
	// share a timestamp.
	seq uint64
}

func (m Message) clone() Message {
	if m.Reactions != nil {
		m.Reactions = append([]string(nil), m.Reactions...)
	}
	return m
}

// before reports whether m sorts before o in a timeline.
func (m *Message) before(o *Message) bool {
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.Before(o.CreatedAt)
	}
	return m.seq < o.seq
}

// ConversationKind distinguishes one-to-one from group conversations.
type ConversationKind string

const (
	Direct ConversationKind = "direct"
	Group  ConversationKind = "group"
)

// A Conversation is a thread between two or more participants. Name and
// AvatarURL are only meaningful for groups; direct conversations take both
// from the remote participant.
type Conversation struct {
	ID           string           `json:"id" validate:"required"`
	Kind         ConversationKind `json:"kind" validate:"required,oneof=direct group"`
	Participants []User           `json:"participants" validate:"min=2,dive"`
	Name         string           `json:"name,omitempty"`
	AvatarURL    string           `json:"avatar_url,omitempty"`
	UnreadCount  int              `json:"unread_count" validate:"gte=0"`
	IsTyping     bool             `json:"is_typing"`
	TypingUserID string           `json:"typing_user_id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// NoMessagesPreview is the preview text of a conversation without messages.
const NoMessagesPreview = "No messages yet"

// TypingPreview replaces the preview while someone is typing.
const TypingPreview = "typing..."

// A Summary is one entry of the conversation list: the conversation with its
// participants resolved to their current state and everything a list row
// needs to render.
type Summary struct {
	Conversation
	DisplayName   string   `json:"display_name"`
	DisplayAvatar string   `json:"display_avatar"`
	LastMessage   *Message `json:"last_message,omitempty"`
	Preview       string   `json:"preview"`
	UnreadBadge   string   `json:"unread_badge,omitempty"`
	StatusLine    string   `json:"status_line"`
}

// activity is the time the conversation list sorts by.
func (s *Summary) activity() time.Time {
	if s.LastMessage != nil {
		return s.LastMessage.CreatedAt
	}
	return s.CreatedAt
}

// unreadBadge formats an unread counter for a badge, capping it at 99+.
func unreadBadge(n int) string {
	switch {
	case n <= 0:
		return ""
	case n > 99:
		return "99+"
	default:
		return strconv.Itoa(n)
	}
}

// A Roster is the initial state handed to the engine once a session starts.
type Roster struct {
	Users         []User
	Conversations []Conversation
	Messages      []Message
}
