package chat

import (
	"iter"
	"slices"
	"sort"
)

// Append stores a new message with status sent and returns it with its
// defaults filled in: a generated id when ID is empty, KindText when Kind is
// empty and the engine clock when CreatedAt is zero.
//
// A message from a remote sender increments the conversation's unread
// counter; the local user's own messages never do.
func (e *Engine) Append(msg Message) (Message, error) {
	m := msg.clone()
	m.Status = StatusSent
	e.fillMessage(&m)
	c, err := e.checkMessage(&m, e.participantsOf, e.hasMessage, e.hasMessage)
	if err != nil {
		return Message{}, err
	}

	e.insert(c, &m)
	if m.SenderID != e.localUserID {
		c.UnreadCount++
	}
	e.logger.Debug("Message appended",
		"conversation_id", c.ID, "message_id", m.ID, "sender_id", m.SenderID, "unread", c.UnreadCount)
	e.changed(true, c.ID)
	return m.clone(), nil
}

// AdvanceStatus moves a message's read receipt forward. Moving to the
// current status is a no-op; moving backwards fails with an
// InvalidTransitionError. Skipping a state (sent to read) is allowed.
func (e *Engine) AdvanceStatus(messageID string, status Status) error {
	if status.rank() < 0 {
		return invalid("status", "must be one of: sent delivered read")
	}
	m, ok := e.msgs[messageID]
	if !ok {
		return messageNotFound(messageID)
	}
	switch {
	case status == m.Status:
		return nil
	case status.rank() < m.Status.rank():
		return &InvalidTransitionError{MessageID: messageID, From: m.Status, To: status}
	}

	m.Status = status
	e.logger.Debug("Message status advanced", "message_id", messageID, "status", status)
	e.changed(e.isLast(m), m.ConversationID)
	return nil
}

// AddReaction appends reaction to the message. Duplicates are kept, in
// arrival order.
func (e *Engine) AddReaction(messageID, reaction string) error {
	if errs := e.val.Validate(reaction, "notblank"); len(errs) > 0 {
		return invalid("reaction", errs[0].Message)
	}
	m, ok := e.msgs[messageID]
	if !ok {
		return messageNotFound(messageID)
	}

	m.Reactions = append(m.Reactions, reaction)
	e.changed(e.isLast(m), m.ConversationID)
	return nil
}

// MessagesFor returns the messages of a conversation ordered by creation
// time, with messages sharing a timestamp kept in insertion order. The
// sequence is lazy and can be ranged over repeatedly; each pass reads the
// current state.
func (e *Engine) MessagesFor(conversationID string) (iter.Seq[Message], error) {
	if _, ok := e.convs[conversationID]; !ok {
		return nil, conversationNotFound(conversationID)
	}
	return func(yield func(Message) bool) {
		c, ok := e.convs[conversationID]
		if !ok {
			return
		}
		for _, m := range c.messages {
			if !yield(m.clone()) {
				return
			}
		}
	}, nil
}

// Message returns a stored message.
func (e *Engine) Message(id string) (Message, error) {
	m, ok := e.msgs[id]
	if !ok {
		return Message{}, messageNotFound(id)
	}
	return m.clone(), nil
}

func (e *Engine) fillMessage(m *Message) {
	if m.ID == "" {
		m.ID = e.newID()
	}
	if m.Kind == "" {
		m.Kind = KindText
	}
	if m.Status == "" {
		m.Status = StatusSent
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = e.now()
	}
}

// checkMessage validates m against the lookups it is given and returns the
// conversation it belongs to. Roster loading passes lookups that also see
// the batch being loaded.
func (e *Engine) checkMessage(
	m *Message,
	participants func(conversationID string) (*conversation, []string, bool),
	taken func(messageID string) bool,
	known func(messageID string) bool,
) (*conversation, error) {
	if err := e.validate(m); err != nil {
		return nil, err
	}
	c, members, ok := participants(m.ConversationID)
	if !ok {
		return nil, conversationNotFound(m.ConversationID)
	}
	if !slices.Contains(members, m.SenderID) {
		return nil, invalid("sender_id", "is not a participant of conversation "+m.ConversationID)
	}
	if taken(m.ID) {
		return nil, invalid("id", "already exists")
	}
	if m.ReplyToID != "" && !known(m.ReplyToID) {
		return nil, invalid("reply_to_id", "references an unknown message")
	}
	return c, nil
}

func (e *Engine) participantsOf(conversationID string) (*conversation, []string, bool) {
	c, ok := e.convs[conversationID]
	if !ok {
		return nil, nil, false
	}
	return c, c.participants, true
}

func (e *Engine) hasMessage(id string) bool {
	_, ok := e.msgs[id]
	return ok
}

// insert places m in c's timeline after every message that does not sort
// after it.
func (e *Engine) insert(c *conversation, m *Message) {
	e.seq++
	m.seq = e.seq
	i := sort.Search(len(c.messages), func(i int) bool {
		return m.before(c.messages[i])
	})
	c.messages = slices.Insert(c.messages, i, m)
	e.msgs[m.ID] = m
}

func (e *Engine) isLast(m *Message) bool {
	c, ok := e.convs[m.ConversationID]
	return ok && c.last() == m
}
