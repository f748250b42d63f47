package store

import (
	"context"

	"school-messenger/internal/models"
)

// MessageStore is the durable, append-only record of messages and the
// single source of truth for conversation state. Everything a recipient
// missed while offline is recovered from here, there is no separate
// retry queue.
type MessageStore interface {
	// Append persists a new message and fills in its assigned id and
	// server-side timestamp. Structural problems (bad refs, empty content)
	// fail with *models.ValidationError, storage failures with
	// *models.PersistenceError.
	Append(ctx context.Context, m *models.Message) error

	// ForConversation returns every message between the unordered pair
	// {a, b}, both directions, ordered by (created_at, id) ascending.
	ForConversation(ctx context.Context, a, b models.Ref) ([]models.Message, error)

	// UnreadFor returns unread messages addressed to ref, newest first.
	UnreadFor(ctx context.Context, ref models.Ref) ([]models.Message, error)

	// MarkRead transitions one message unread -> read. Already-read is a
	// no-op, never an error.
	MarkRead(ctx context.Context, id int64) error

	// MarkConversationRead bulk-transitions every unread message sent by
	// counterpart to owner. One statement per conversation-open so a
	// message arriving mid-transition is either fully unread or fully read.
	MarkConversationRead(ctx context.Context, owner, counterpart models.Ref) error

	// MostRecentPerCounterpart returns, for each distinct counterpart ref
	// has exchanged messages with, the single latest message by
	// (created_at, id). Computed as one grouped scan.
	MostRecentPerCounterpart(ctx context.Context, ref models.Ref) ([]models.Message, error)
}

func validate(m *models.Message) error {
	if !m.Sender.Valid() {
		return &models.ValidationError{Reason: "sender reference is missing id or role"}
	}
	if !m.Receiver.Valid() {
		return &models.ValidationError{Reason: "receiver reference is missing id or role"}
	}
	if m.Sender == m.Receiver {
		return &models.ValidationError{Reason: "sender and receiver are the same participant"}
	}
	if m.Content == "" {
		return &models.ValidationError{Reason: "content is empty"}
	}
	return nil
}
