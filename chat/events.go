package chat

import "slices"

// A Listener is told about changes to derived views. Callbacks run
// synchronously inside the mutating call and must not retain or modify the
// slices they receive.
type Listener interface {
	ConversationListChanged(conversations []Summary)
	TimelineChanged(conversationID string, groups []DateGroup)
}

// ListenerFuncs adapts plain functions to a Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnConversationListChanged func(conversations []Summary)
	OnTimelineChanged         func(conversationID string, groups []DateGroup)
}

func (f ListenerFuncs) ConversationListChanged(conversations []Summary) {
	if f.OnConversationListChanged != nil {
		f.OnConversationListChanged(conversations)
	}
}

func (f ListenerFuncs) TimelineChanged(conversationID string, groups []DateGroup) {
	if f.OnTimelineChanged != nil {
		f.OnTimelineChanged(conversationID, groups)
	}
}

type subscription struct {
	id int
	l  Listener
}

// Subscribe registers l and returns a func that removes it.
func (e *Engine) Subscribe(l Listener) (unsubscribe func()) {
	e.nextListener++
	id := e.nextListener
	e.listeners = append(e.listeners, subscription{id: id, l: l})
	return func() {
		e.listeners = slices.DeleteFunc(e.listeners, func(s subscription) bool { return s.id == id })
	}
}

// OnMessageReceived ingests a message delivered by the transport.
func (e *Engine) OnMessageReceived(msg Message) (Message, error) {
	return e.Append(msg)
}

// OnStatusUpdate ingests a read receipt pushed by the transport.
func (e *Engine) OnStatusUpdate(messageID string, status Status) error {
	return e.AdvanceStatus(messageID, status)
}

// OnTypingChanged ingests a typing notification. An empty userID means
// nobody is typing.
func (e *Engine) OnTypingChanged(conversationID, userID string) error {
	return e.SetTyping(conversationID, userID)
}

// OnPresenceChanged ingests a presence notification.
func (e *Engine) OnPresenceChanged(userID string, presence Presence) error {
	return e.SetPresence(userID, presence)
}

// SendLocalMessage appends a message from the local user and returns its
// provisional id. The transport later reconciles its status through
// OnStatusUpdate.
func (e *Engine) SendLocalMessage(conversationID, content string, kind MessageKind) (string, error) {
	m, err := e.Append(Message{
		ConversationID: conversationID,
		SenderID:       e.localUserID,
		Content:        content,
		Kind:           kind,
	})
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

// OnRosterLoaded seeds the engine with the state of a fresh session. The
// roster is validated as a whole before anything is stored, so a bad entry
// leaves the engine untouched.
//
// Roster messages keep the status they carry and do not change unread
// counters; each roster conversation brings its own UnreadCount. A reply to
// a message that is neither stored nor in the roster loses its reference.
// Presence of r.Users is taken as current; conversation participants only
// supply it for users seen for the first time.
func (e *Engine) OnRosterLoaded(r Roster) error {
	for _, u := range r.Users {
		if err := e.validate(u); err != nil {
			return err
		}
	}

	members := make(map[string][]string, len(r.Conversations))
	for _, conv := range r.Conversations {
		if err := e.checkConversation(conv); err != nil {
			return err
		}
		ids := make([]string, len(conv.Participants))
		for i, p := range conv.Participants {
			ids[i] = p.ID
		}
		members[conv.ID] = ids
	}
	participants := func(id string) (*conversation, []string, bool) {
		if ids, ok := members[id]; ok {
			return nil, ids, true
		}
		return e.participantsOf(id)
	}

	msgs := make([]Message, len(r.Messages))
	batch := make(map[string]bool, len(r.Messages))
	for i, msg := range r.Messages {
		m := msg.clone()
		e.fillMessage(&m)
		msgs[i] = m
		batch[m.ID] = true
	}
	seen := make(map[string]bool, len(msgs))
	taken := func(id string) bool { return seen[id] || e.hasMessage(id) }
	known := func(id string) bool { return batch[id] || e.hasMessage(id) }
	for i := range msgs {
		// Replies may point at messages older than the roster window.
		if ref := msgs[i].ReplyToID; ref != "" && !known(ref) {
			e.logger.Warn("Dropping reply reference outside the roster",
				"message_id", msgs[i].ID, "reply_to_id", ref)
			msgs[i].ReplyToID = ""
		}
		if _, err := e.checkMessage(&msgs[i], participants, taken, known); err != nil {
			return err
		}
		seen[msgs[i].ID] = true
	}

	for _, u := range r.Users {
		e.putUser(u, true)
	}
	for _, conv := range r.Conversations {
		e.commitConversation(conv)
	}
	touched := make([]string, 0)
	for i := range msgs {
		m := &msgs[i]
		c := e.convs[m.ConversationID]
		e.insert(c, m)
		if !slices.Contains(touched, c.ID) {
			touched = append(touched, c.ID)
		}
	}

	e.logger.Info("Roster loaded",
		"users", len(r.Users), "conversations", len(r.Conversations), "messages", len(msgs))
	e.changed(true, touched...)
	return nil
}
