package redis

import (
	"time"

	"github.com/GetStream/chat-state-engine/chat"
)

// A message is the hash stored under messages:MESSAGE_ID.
type message struct {
	ID             string `redis:"id"`
	ConversationID string `redis:"conversation_id"`
	SenderID       string `redis:"sender_id"`
	Content        string `redis:"content"`
	Kind           string `redis:"kind"`
	Status         string `redis:"status"`
	ReplyToID      string `redis:"reply_to_id"`
	FileURL        string `redis:"file_url"`
	// CreatedAt is in Unix nanoseconds, the same value as the sorted set score.
	CreatedAt int64 `redis:"created_at"`
	Reactions []string
}

func (m message) ChatMessage() chat.Message {
	return chat.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Kind:           chat.MessageKind(m.Kind),
		Status:         chat.Status(m.Status),
		CreatedAt:      time.Unix(0, m.CreatedAt).UTC(),
		Reactions:      m.Reactions,
		ReplyToID:      m.ReplyToID,
		FileURL:        m.FileURL,
	}
}
