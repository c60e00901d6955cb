package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/GetStream/chat-state-engine/chat"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Postgres reads the roster of the local user from PostgreSQL.
type Postgres struct {
	bun *bun.DB
}

// Connect connects to the database and ping the DB to ensure the connection is
// working.
func Connect(ctx context.Context, connStr string) (*Postgres, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	db.RegisterModel((*conversationParticipant)(nil))
	return &Postgres{
		bun: db,
	}, nil
}

// Close closes the database.
func (pg *Postgres) Close() error {
	return pg.bun.Close()
}

// ListUsers returns every user the local user shares a conversation with.
func (pg *Postgres) ListUsers(ctx context.Context) ([]chat.User, error) {
	var users []user
	if err := pg.bun.NewSelect().Model(&users).Order("id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	out := make([]chat.User, len(users))
	for i, u := range users {
		out[i] = u.ChatUser()
	}
	return out, nil
}

// ListConversations returns all conversations with their participants.
func (pg *Postgres) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	var convs []conversation
	err := pg.bun.NewSelect().
		Model(&convs).
		Relation("Members").
		Order("created_at").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	out := make([]chat.Conversation, len(convs))
	for i, c := range convs {
		out[i] = c.ChatConversation()
	}
	return out, nil
}

// ListMessages returns up to limit of the most recent messages, skipping the
// ids in excludeMsgIDs.
func (pg *Postgres) ListMessages(ctx context.Context, limit int, excludeMsgIDs ...string) ([]chat.Message, error) {
	var msgs []message
	q := pg.bun.NewSelect().
		Model(&msgs).
		Relation("Reactions", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("created_at ASC")
		}).
		Order("created_at DESC").
		Limit(limit)

	if len(excludeMsgIDs) > 0 {
		q = q.Where("id NOT IN (?)", bun.In(excludeMsgIDs))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	out := make([]chat.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.ChatMessage()
	}

	return out, nil
}
