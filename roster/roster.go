// Package roster assembles the initial engine state of a session from the
// backend's database and its recent-message cache.
package roster

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GetStream/chat-state-engine/chat"
)

// A DB provides the persisted users, conversations and messages.
type DB interface {
	ListUsers(ctx context.Context) ([]chat.User, error)
	ListConversations(ctx context.Context) ([]chat.Conversation, error)
	ListMessages(ctx context.Context, limit int, excludeMsgIDs ...string) ([]chat.Message, error)
}

// A Cache provides recently sent messages and the latest presence of users.
type Cache interface {
	ListMessages(ctx context.Context) ([]chat.Message, error)
	ListPresence(ctx context.Context) (map[string]chat.Presence, error)
}

// Loader builds a chat.Roster. Cache may be nil.
type Loader struct {
	Logger *slog.Logger
	DB     DB
	Cache  Cache
	// MessageLimit bounds the messages read from DB.
	MessageLimit int
}

// defaultMessageLimit applies when MessageLimit is not set.
const defaultMessageLimit = 500

// Load reads the roster. Cached messages are taken first and DB is only
// asked for the messages the cache does not hold; cached presence wins over
// the persisted one.
func (l *Loader) Load(ctx context.Context) (chat.Roster, error) {
	users, err := l.DB.ListUsers(ctx)
	if err != nil {
		return chat.Roster{}, fmt.Errorf("list users: %w", err)
	}
	convs, err := l.DB.ListConversations(ctx)
	if err != nil {
		return chat.Roster{}, fmt.Errorf("list conversations: %w", err)
	}

	var msgs []chat.Message
	if l.Cache != nil {
		msgs, err = l.Cache.ListMessages(ctx)
		if err != nil {
			return chat.Roster{}, fmt.Errorf("list cached messages: %w", err)
		}
		l.Logger.Info("Got messages from cache", "count", len(msgs))

		presence, err := l.Cache.ListPresence(ctx)
		if err != nil {
			return chat.Roster{}, fmt.Errorf("list presence: %w", err)
		}
		for i := range users {
			if p, ok := presence[users[i].ID]; ok {
				users[i].Presence = p
			}
		}
	}

	msgIDs := make([]string, len(msgs))
	for i, msg := range msgs {
		msgIDs[i] = msg.ID
	}

	limit := l.MessageLimit
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	dbMsgs, err := l.DB.ListMessages(ctx, limit, msgIDs...)
	if err != nil {
		return chat.Roster{}, fmt.Errorf("list messages: %w", err)
	}
	l.Logger.Info("Got remaining messages from DB", "count", len(dbMsgs))

	return chat.Roster{
		Users:         users,
		Conversations: convs,
		Messages:      append(msgs, dbMsgs...),
	}, nil
}
