package chat

import "fmt"

// A ValidationError reports malformed input. The engine state is unchanged
// when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// An InvalidTransitionError reports an attempt to move a message status
// backwards.
type InvalidTransitionError struct {
	MessageID string
	From      Status
	To        Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("message %s: invalid status transition %s -> %s", e.MessageID, e.From, e.To)
}

// A NotFoundError reports a reference to an unknown conversation or message.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func conversationNotFound(id string) error {
	return &NotFoundError{Kind: "conversation", ID: id}
}

func messageNotFound(id string) error {
	return &NotFoundError{Kind: "message", ID: id}
}
