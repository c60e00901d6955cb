package chat

// SetPresence updates a user's presence. Going offline stamps LastSeen.
func (e *Engine) SetPresence(userID string, presence Presence) error {
	switch presence {
	case PresenceOnline, PresenceAway, PresenceOffline:
	default:
		return invalid("presence", "must be one of: online away offline")
	}
	u, ok := e.users[userID]
	if !ok {
		return invalid("user_id", "references an unknown user")
	}
	if u.Presence == presence {
		return nil
	}

	if presence == PresenceOffline {
		u.LastSeen = e.now()
	}
	u.Presence = presence
	e.logger.Debug("Presence changed", "user_id", userID, "presence", presence)
	e.changed(true)
	return nil
}

// SetTyping marks userID as typing in a conversation, or clears the
// indicator when userID is empty. Typing state is never cleared by the
// engine itself; callers own the inactivity timeout.
func (e *Engine) SetTyping(conversationID, userID string) error {
	c, ok := e.convs[conversationID]
	if !ok {
		return conversationNotFound(conversationID)
	}
	if userID != "" && !c.hasParticipant(userID) {
		return invalid("user_id", "is not a participant of conversation "+conversationID)
	}
	if e.setTyping(c, userID) {
		e.changed(true)
	}
	return nil
}
