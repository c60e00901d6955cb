// Package chat holds the in-memory state of a messaging client: users,
// conversations, messages, read receipts, unread counters and typing
// presence. Every view the interface needs (the conversation list, filtered
// lists, grouped timelines) is derived from that state on demand.
//
// An Engine is a single-writer object. It never starts goroutines and has no
// locks; hosts that receive events concurrently must serialize them before
// calling in.
package chat

import (
	"cmp"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/GetStream/chat-state-engine/chat/validator"
	"github.com/google/uuid"
)

// Options configure an Engine.
type Options struct {
	// LocalUserID is the id of the user running the client. Required.
	LocalUserID string
	// Location is the viewer's time zone used to group timelines by day.
	// Defaults to time.Local.
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
	// NewID generates ids for messages appended without one. Defaults to
	// random UUIDs.
	NewID  func() string
	Logger *slog.Logger
}

// Engine owns the canonical conversation state.
type Engine struct {
	localUserID string
	loc         *time.Location
	now         func() time.Time
	newID       func() string
	logger      *slog.Logger
	val         *validator.Validator

	users map[string]*User
	convs map[string]*conversation
	msgs  map[string]*Message
	seq   uint64

	// version is bumped by every successful mutation; the memoized
	// conversation list is valid only while listVersion matches it.
	version     uint64
	listVersion uint64
	list        []Summary

	listeners    []subscription
	nextListener int
}

// conversation is the registry record. Participants are kept as ids and
// resolved against the user directory whenever a view is built.
type conversation struct {
	Conversation
	participants []string
	messages     []*Message
}

func (c *conversation) hasParticipant(userID string) bool {
	return slices.Contains(c.participants, userID)
}

func (c *conversation) last() *Message {
	if len(c.messages) == 0 {
		return nil
	}
	return c.messages[len(c.messages)-1]
}

// New returns an empty Engine for the local user.
func New(opts Options) (*Engine, error) {
	if opts.LocalUserID == "" {
		return nil, invalid("local_user_id", "is required")
	}
	e := &Engine{
		localUserID: opts.LocalUserID,
		loc:         opts.Location,
		now:         opts.Now,
		newID:       opts.NewID,
		logger:      opts.Logger,
		val:         validator.New(),
		users:       make(map[string]*User),
		convs:       make(map[string]*conversation),
		msgs:        make(map[string]*Message),
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e, nil
}

// LocalUserID returns the id of the user the engine was created for.
func (e *Engine) LocalUserID() string { return e.localUserID }

// Location returns the time zone timelines are grouped in.
func (e *Engine) Location() *time.Location { return e.loc }

// Version returns a counter that changes after every successful mutation.
func (e *Engine) Version() uint64 { return e.version }

// User returns the current state of a known user.
func (e *Engine) User(id string) (User, bool) {
	u, ok := e.users[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// validate runs struct validation and converts the first failure into a
// ValidationError.
func (e *Engine) validate(s any) error {
	errs := e.val.ValidateStruct(s)
	if len(errs) == 0 {
		return nil
	}
	return invalid(errs[0].Field, errs[0].Message)
}

// putUser registers u, or merges its non-zero profile fields into the known
// record. Presence and LastSeen of a known user are only taken when
// withPresence is set; otherwise they belong to SetPresence.
func (e *Engine) putUser(u User, withPresence bool) {
	cur, ok := e.users[u.ID]
	if !ok {
		if u.Presence == "" {
			u.Presence = PresenceOffline
		}
		e.users[u.ID] = &u
		return
	}
	if u.Name != "" {
		cur.Name = u.Name
	}
	if u.AvatarURL != "" {
		cur.AvatarURL = u.AvatarURL
	}
	if u.Bio != "" {
		cur.Bio = u.Bio
	}
	if !withPresence {
		return
	}
	if u.Presence != "" {
		cur.Presence = u.Presence
	}
	if !u.LastSeen.IsZero() {
		cur.LastSeen = u.LastSeen
	}
}

// changed records a mutation and notifies listeners. list reports whether
// the conversation list may have changed; conversationIDs name the
// timelines that did.
func (e *Engine) changed(list bool, conversationIDs ...string) {
	e.version++
	if len(e.listeners) == 0 {
		return
	}
	subs := slices.Clone(e.listeners)
	if list {
		for _, s := range subs {
			s.l.ConversationListChanged(e.Conversations())
		}
	}
	for _, id := range conversationIDs {
		groups, err := e.Timeline(id)
		if err != nil {
			continue
		}
		for _, s := range subs {
			s.l.TimelineChanged(id, groups)
		}
	}
}

// summarize builds the list entry for c from current state.
func (e *Engine) summarize(c *conversation) Summary {
	s := Summary{Conversation: c.Conversation}
	s.Participants = make([]User, 0, len(c.participants))
	for _, id := range c.participants {
		if u, ok := e.users[id]; ok {
			s.Participants = append(s.Participants, *u)
		}
	}

	switch c.Kind {
	case Group:
		s.DisplayName = c.Name
		s.DisplayAvatar = c.AvatarURL
		s.StatusLine = pluralMembers(len(c.participants))
	default:
		for _, p := range s.Participants {
			if p.ID == e.localUserID {
				continue
			}
			s.DisplayName = p.Name
			s.DisplayAvatar = p.AvatarURL
			if p.Presence == PresenceOnline {
				s.StatusLine = "Online"
			} else {
				s.StatusLine = "Last seen recently"
			}
			break
		}
	}

	if m := c.last(); m != nil {
		lm := m.clone()
		s.LastMessage = &lm
	}
	switch {
	case c.IsTyping:
		s.Preview = TypingPreview
	case s.LastMessage != nil:
		s.Preview = s.LastMessage.Content
	default:
		s.Preview = NoMessagesPreview
	}
	s.UnreadBadge = unreadBadge(c.UnreadCount)
	return s
}

func pluralMembers(n int) string {
	if n == 1 {
		return "1 member"
	}
	return strconv.Itoa(n) + " members"
}

// sortSummaries orders the conversation list by most recent activity, then
// by id.
func sortSummaries(list []Summary) {
	slices.SortStableFunc(list, func(a, b Summary) int {
		if c := b.activity().Compare(a.activity()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func cloneSummary(s Summary) Summary {
	s.Participants = slices.Clone(s.Participants)
	if s.LastMessage != nil {
		lm := s.LastMessage.clone()
		s.LastMessage = &lm
	}
	return s
}
