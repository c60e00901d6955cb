package redis

import (
	"context"
	"fmt"

	"github.com/GetStream/chat-state-engine/chat"
	"github.com/redis/go-redis/v9"
)

// Redis reads the recent-message cache and the presence snapshot kept by the
// messaging backend. It never writes.
type Redis struct {
	cli *redis.Client
}

// Connect connects to the Redis server and pings the server to ensure the
// connection is working.
func Connect(ctx context.Context, addr string) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{
		cli: cli,
	}, nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.cli.Close()
}

const (
	messagePrefix = "messages"
	presenceKey   = "presence"
)

// ListMessages returns the cached messages, oldest first. Every message key
// is a member of the messages sorted set, scored by its creation time.
func (r *Redis) ListMessages(ctx context.Context) ([]chat.Message, error) {
	keys, err := r.cli.ZRangeByScore(ctx, messagePrefix, &redis.ZRangeBy{
		Min: "-inf",
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange: %w", err)
	}

	out := make([]chat.Message, 0, len(keys))
	for _, key := range keys {
		var msg message
		if err := r.cli.HGetAll(ctx, key).Scan(&msg); err != nil {
			return nil, fmt.Errorf("hgetall: %w", err)
		}
		if msg.ID == "" {
			// Hash expired while its sorted set member lingers.
			continue
		}

		reactions, err := r.ListReactions(ctx, msg.ID)
		if err != nil {
			return nil, fmt.Errorf("list reactions: %w", err)
		}
		msg.Reactions = reactions
		out = append(out, msg.ChatMessage())
	}

	return out, nil
}

// ListReactions returns the reactions of a message in arrival order.
func (r *Redis) ListReactions(ctx context.Context, msgID string) ([]string, error) {
	key := fmt.Sprintf("%s:%s:reactions", messagePrefix, msgID)
	vals, err := r.cli.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange: %w", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return vals, nil
}

// ListPresence returns the last known presence of every user in the
// snapshot hash. Values other than online, away and offline are skipped.
func (r *Redis) ListPresence(ctx context.Context) (map[string]chat.Presence, error) {
	vals, err := r.cli.HGetAll(ctx, presenceKey).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall: %w", err)
	}

	out := make(map[string]chat.Presence, len(vals))
	for userID, v := range vals {
		switch p := chat.Presence(v); p {
		case chat.PresenceOnline, chat.PresenceAway, chat.PresenceOffline:
			out[userID] = p
		}
	}
	return out, nil
}
