package roster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GetStream/chat-state-engine/chat"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/neilotoole/slogt"
)

var (
	you   = chat.User{ID: "1", Name: "You", Presence: chat.PresenceOnline}
	sarah = chat.User{ID: "2", Name: "Sarah Wilson", Presence: chat.PresenceOffline}

	direct = chat.Conversation{ID: "c1", Kind: chat.Direct, Participants: []chat.User{you, sarah}, UnreadCount: 1}

	cached = chat.Message{
		ID:             "m2",
		ConversationID: "c1",
		SenderID:       "2",
		Content:        "Are we still meeting tomorrow at 3?",
		CreatedAt:      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	stored = chat.Message{
		ID:             "m1",
		ConversationID: "c1",
		SenderID:       "1",
		Content:        "Hello",
		Status:         chat.StatusRead,
		CreatedAt:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
)

func TestLoader_Load(t *testing.T) {
	tests := []struct {
		name    string
		db      *testdb
		cache   *testcache
		limit   int
		want    chat.Roster
		wantErr bool
	}{
		{
			name: "DBOnly",
			db: &testdb{
				listMessages: func(t *testing.T, limit int, excludeMsgIDs ...string) ([]chat.Message, error) {
					if limit != defaultMessageLimit {
						t.Errorf("limit = %d, want %d", limit, defaultMessageLimit)
					}
					if len(excludeMsgIDs) != 0 {
						t.Errorf("excludeMsgIDs = %v, want none", excludeMsgIDs)
					}
					return []chat.Message{stored}, nil
				},
			},
			want: chat.Roster{
				Users:         []chat.User{you, sarah},
				Conversations: []chat.Conversation{direct},
				Messages:      []chat.Message{stored},
			},
		},
		{
			name:  "Mixed",
			limit: 20,
			cache: &testcache{
				listMessages: func(t *testing.T) ([]chat.Message, error) {
					return []chat.Message{cached}, nil
				},
				listPresence: func(t *testing.T) (map[string]chat.Presence, error) {
					return map[string]chat.Presence{"2": chat.PresenceAway, "99": chat.PresenceOnline}, nil
				},
			},
			db: &testdb{
				listMessages: func(t *testing.T, limit int, excludeMsgIDs ...string) ([]chat.Message, error) {
					if limit != 20 {
						t.Errorf("limit = %d, want 20", limit)
					}
					if diff := cmp.Diff([]string{"m2"}, excludeMsgIDs); diff != "" {
						t.Errorf("excludeMsgIDs mismatch (-want +got):\n%s", diff)
					}
					return []chat.Message{stored}, nil
				},
			},
			want: chat.Roster{
				Users:         []chat.User{you, {ID: "2", Name: "Sarah Wilson", Presence: chat.PresenceAway}},
				Conversations: []chat.Conversation{direct},
				Messages:      []chat.Message{cached, stored},
			},
		},
		{
			name: "CacheError",
			cache: &testcache{
				listMessages: func(t *testing.T) ([]chat.Message, error) {
					return nil, errors.New("something went wrong")
				},
			},
			db:      &testdb{},
			wantErr: true,
		},
		{
			name: "DBError",
			db: &testdb{
				listUsers: func(t *testing.T) ([]chat.User, error) {
					return nil, errors.New("something went wrong")
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.db.T = t
			l := &Loader{
				Logger:       slogt.New(t),
				DB:           tt.db,
				MessageLimit: tt.limit,
			}
			if tt.cache != nil {
				tt.cache.T = t
				l.Cache = tt.cache
			}

			got, err := l.Load(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Fatal("Load() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got, cmpopts.IgnoreUnexported(chat.Message{})); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoader_Load_seedsEngine(t *testing.T) {
	l := &Loader{
		Logger: slogt.New(t),
		DB: &testdb{
			T: t,
			listMessages: func(t *testing.T, limit int, excludeMsgIDs ...string) ([]chat.Message, error) {
				return []chat.Message{stored}, nil
			},
		},
		Cache: &testcache{
			T: t,
			listMessages: func(t *testing.T) ([]chat.Message, error) {
				return []chat.Message{cached}, nil
			},
		},
	}
	r, err := l.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	e, err := chat.New(chat.Options{LocalUserID: "1", Location: time.UTC, Logger: slogt.New(t)})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.OnRosterLoaded(r); err != nil {
		t.Fatalf("OnRosterLoaded() error = %v", err)
	}
	m, ok, err := e.LastMessage("c1")
	if err != nil || !ok || m.ID != "m2" {
		t.Errorf("LastMessage() = %v, %v, %v, want m2", m.ID, ok, err)
	}
}

func TestLoader_Load_cachedPresenceWins(t *testing.T) {
	l := &Loader{
		Logger: slogt.New(t),
		DB: &testdb{
			T: t,
			listMessages: func(t *testing.T, limit int, excludeMsgIDs ...string) ([]chat.Message, error) {
				return nil, nil
			},
		},
		Cache: &testcache{
			T: t,
			listMessages: func(t *testing.T) ([]chat.Message, error) {
				return nil, nil
			},
			listPresence: func(t *testing.T) (map[string]chat.Presence, error) {
				return map[string]chat.Presence{"2": chat.PresenceOnline}, nil
			},
		},
	}
	r, err := l.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	e, err := chat.New(chat.Options{LocalUserID: "1", Location: time.UTC, Logger: slogt.New(t)})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.OnRosterLoaded(r); err != nil {
		t.Fatalf("OnRosterLoaded() error = %v", err)
	}

	// The conversation still lists Sarah with her stored offline presence.
	u, ok := e.User("2")
	if !ok {
		t.Fatal("User(2) not found")
	}
	if u.Presence != chat.PresenceOnline {
		t.Errorf("Presence = %s, want %s", u.Presence, chat.PresenceOnline)
	}
	s, err := e.Conversation("c1")
	if err != nil {
		t.Fatal(err)
	}
	if s.StatusLine != "Online" {
		t.Errorf("StatusLine = %q, want Online", s.StatusLine)
	}
}

type testdb struct {
	T                 *testing.T
	listUsers         func(t *testing.T) ([]chat.User, error)
	listConversations func(t *testing.T) ([]chat.Conversation, error)
	listMessages      func(t *testing.T, limit int, excludeMsgIDs ...string) ([]chat.Message, error)
}

func (db *testdb) ListUsers(_ context.Context) ([]chat.User, error) {
	if db.listUsers == nil {
		return []chat.User{you, sarah}, nil
	}
	return db.listUsers(db.T)
}

func (db *testdb) ListConversations(_ context.Context) ([]chat.Conversation, error) {
	if db.listConversations == nil {
		return []chat.Conversation{direct}, nil
	}
	return db.listConversations(db.T)
}

func (db *testdb) ListMessages(_ context.Context, limit int, excludeMsgIDs ...string) ([]chat.Message, error) {
	return db.listMessages(db.T, limit, excludeMsgIDs...)
}

type testcache struct {
	T            *testing.T
	listMessages func(t *testing.T) ([]chat.Message, error)
	listPresence func(t *testing.T) (map[string]chat.Presence, error)
}

func (c *testcache) ListMessages(_ context.Context) ([]chat.Message, error) {
	return c.listMessages(c.T)
}

func (c *testcache) ListPresence(_ context.Context) (map[string]chat.Presence, error) {
	if c.listPresence == nil {
		return nil, nil
	}
	return c.listPresence(c.T)
}
