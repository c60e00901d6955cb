package postgres

import (
	"time"

	"github.com/GetStream/chat-state-engine/chat"
	"github.com/uptrace/bun"
)

type user struct {
	bun.BaseModel `bun:"table:users"`

	ID        string    `bun:",pk"`
	Name      string    `bun:",notnull"`
	AvatarURL string    `bun:"avatar_url"`
	Presence  string    `bun:",notnull,default:'offline'"`
	LastSeen  time.Time `bun:",nullzero"`
	Bio       string    `bun:",nullzero"`
}

type conversation struct {
	bun.BaseModel `bun:"table:conversations"`

	ID          string    `bun:",pk"`
	Kind        string    `bun:",notnull"`
	Name        string    `bun:",nullzero"`
	AvatarURL   string    `bun:"avatar_url,nullzero"`
	UnreadCount int       `bun:",notnull,default:0"`
	CreatedAt   time.Time `bun:",nullzero,notnull,default:now()"`
	Members     []user    `bun:"m2m:conversation_participants,join:Conversation=User"`
}

// conversationParticipant is the join table between conversations and users.
type conversationParticipant struct {
	bun.BaseModel `bun:"table:conversation_participants"`

	ConversationID string        `bun:",pk"`
	Conversation   *conversation `bun:"rel:belongs-to,join:conversation_id=id"`
	UserID         string        `bun:",pk"`
	User           *user         `bun:"rel:belongs-to,join:user_id=id"`
}

type message struct {
	bun.BaseModel `bun:"table:messages"`

	ID             string     `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	ConversationID string     `bun:",notnull"`
	SenderID       string     `bun:",notnull"`
	MessageText    string     `bun:"message_text,notnull"`
	Kind           string     `bun:",notnull,default:'text'"`
	Status         string     `bun:",notnull,default:'sent'"`
	ReplyToID      string     `bun:",nullzero"`
	FileURL        string     `bun:",nullzero"`
	CreatedAt      time.Time  `bun:",nullzero,default:now()"`
	Reactions      []reaction `bun:"rel:has-many,join:id=message_id"`
}

type reaction struct {
	bun.BaseModel `bun:"table:reactions"`

	ID        string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	MessageID string    `bun:",notnull"`
	UserID    string    `bun:",notnull"`
	Emoji     string    `bun:",notnull"`
	CreatedAt time.Time `bun:",nullzero,default:now()"`
}

func (u user) ChatUser() chat.User {
	return chat.User{
		ID:        u.ID,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		Presence:  chat.Presence(u.Presence),
		LastSeen:  u.LastSeen,
		Bio:       u.Bio,
	}
}

func (c conversation) ChatConversation() chat.Conversation {
	participants := make([]chat.User, len(c.Members))
	for i, u := range c.Members {
		participants[i] = u.ChatUser()
	}

	return chat.Conversation{
		ID:           c.ID,
		Kind:         chat.ConversationKind(c.Kind),
		Participants: participants,
		Name:         c.Name,
		AvatarURL:    c.AvatarURL,
		UnreadCount:  c.UnreadCount,
		CreatedAt:    c.CreatedAt,
	}
}

// ChatMessage converts m. Reactions are expected in creation order.
func (m message) ChatMessage() chat.Message {
	var reactions []string
	for _, r := range m.Reactions {
		reactions = append(reactions, r.Emoji)
	}

	return chat.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.MessageText,
		Kind:           chat.MessageKind(m.Kind),
		Status:         chat.Status(m.Status),
		CreatedAt:      m.CreatedAt,
		Reactions:      reactions,
		ReplyToID:      m.ReplyToID,
		FileURL:        m.FileURL,
	}
}
