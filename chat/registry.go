package chat

import (
	"slices"
	"strings"
)

// Upsert inserts a conversation or replaces the one with the same id. Its
// participants are registered in the user directory; known users have their
// non-zero fields updated. Messages already stored for the conversation are
// kept, and so is the earlier CreatedAt when conv leaves it zero.
func (e *Engine) Upsert(conv Conversation) error {
	if err := e.checkConversation(conv); err != nil {
		return err
	}
	e.commitConversation(conv)
	e.logger.Debug("Conversation upserted", "conversation_id", conv.ID, "kind", conv.Kind)
	e.changed(true)
	return nil
}

// MarkRead resets the unread counter of a conversation. The engine does not
// track focus; callers invoke this when a conversation becomes active.
func (e *Engine) MarkRead(conversationID string) error {
	c, ok := e.convs[conversationID]
	if !ok {
		return conversationNotFound(conversationID)
	}
	if c.UnreadCount == 0 {
		return nil
	}
	c.UnreadCount = 0
	e.changed(true)
	return nil
}

// LastMessage returns the most recent message of a conversation. ok is false
// when the conversation has no messages yet.
func (e *Engine) LastMessage(conversationID string) (msg Message, ok bool, err error) {
	c, found := e.convs[conversationID]
	if !found {
		return Message{}, false, conversationNotFound(conversationID)
	}
	m := c.last()
	if m == nil {
		return Message{}, false, nil
	}
	return m.clone(), true, nil
}

// Conversations returns the conversation list, most recently active first.
// A conversation's activity is its last message time, or its creation time
// while it has no messages. Ties are broken by id.
func (e *Engine) Conversations() []Summary {
	if e.list == nil || e.listVersion != e.version {
		list := make([]Summary, 0, len(e.convs))
		for _, c := range e.convs {
			list = append(list, e.summarize(c))
		}
		sortSummaries(list)
		e.list = list
		e.listVersion = e.version
	}

	out := make([]Summary, len(e.list))
	for i, s := range e.list {
		out[i] = cloneSummary(s)
	}
	return out
}

// Conversation returns the list entry of one conversation.
func (e *Engine) Conversation(id string) (Summary, error) {
	c, ok := e.convs[id]
	if !ok {
		return Summary{}, conversationNotFound(id)
	}
	return e.summarize(c), nil
}

// setTyping sets or, for an empty userID, clears the typing indicator. It
// reports whether anything changed.
func (e *Engine) setTyping(c *conversation, userID string) bool {
	typing := userID != ""
	if c.IsTyping == typing && c.TypingUserID == userID {
		return false
	}
	c.IsTyping = typing
	c.TypingUserID = userID
	return true
}

func (e *Engine) checkConversation(conv Conversation) error {
	if err := e.validate(conv); err != nil {
		return err
	}

	ids := make([]string, len(conv.Participants))
	for i, p := range conv.Participants {
		ids[i] = p.ID
	}
	slices.Sort(ids)
	if len(slices.Compact(ids)) != len(conv.Participants) {
		return invalid("participants", "contain duplicate users")
	}

	isMember := func(id string) bool {
		return slices.ContainsFunc(conv.Participants, func(u User) bool { return u.ID == id })
	}
	switch conv.Kind {
	case Direct:
		if len(conv.Participants) != 2 {
			return invalid("participants", "of a direct conversation must be exactly 2 users")
		}
		if !isMember(e.localUserID) {
			return invalid("participants", "of a direct conversation must include the local user")
		}
	case Group:
		if strings.TrimSpace(conv.Name) == "" {
			return invalid("name", "is required for group conversations")
		}
	}
	if conv.TypingUserID != "" && !isMember(conv.TypingUserID) {
		return invalid("typing_user_id", "is not a participant")
	}
	return nil
}

// commitConversation stores a conversation that passed checkConversation.
func (e *Engine) commitConversation(conv Conversation) {
	members := make([]string, len(conv.Participants))
	for i, p := range conv.Participants {
		e.putUser(p, false)
		members[i] = p.ID
	}

	rec := &conversation{participants: members}
	rec.Conversation = conv
	rec.Participants = nil
	rec.IsTyping = conv.TypingUserID != ""

	if prev, ok := e.convs[conv.ID]; ok {
		rec.messages = prev.messages
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = prev.CreatedAt
		}
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = e.now()
	}
	e.convs[conv.ID] = rec
}
