package messaging

import (
	"context"

	"school-messenger/internal/models"
	"school-messenger/internal/store"
)

// Tracker exposes the unread view over the message store: the badge-count
// list, and the bulk unread -> read transition fired when a conversation
// is opened.
type Tracker struct {
	store store.MessageStore
}

func NewTracker(s store.MessageStore) *Tracker {
	return &Tracker{store: s}
}

// Unread returns the raw unread set for ref, newest first, independent of
// conversation grouping.
func (t *Tracker) Unread(ctx context.Context, ref models.Ref) ([]models.Message, error) {
	return t.store.UnreadFor(ctx, ref)
}

func (t *Tracker) UnreadCount(ctx context.Context, ref models.Ref) (int, error) {
	unread, err := t.store.UnreadFor(ctx, ref)
	if err != nil {
		return 0, err
	}
	return len(unread), nil
}

// MarkConversationRead transitions every unread message from counterpart
// in one bulk operation. Always per conversation-open, never per message:
// a message arriving mid-transition stays cleanly unread for the next open.
func (t *Tracker) MarkConversationRead(ctx context.Context, owner, counterpart models.Ref) error {
	return t.store.MarkConversationRead(ctx, owner, counterpart)
}

// OpenConversation is the conversation-open operation: mark everything
// from counterpart read, then return the full history oldest first. The
// mark runs first so the returned messages reflect the state the store is
// now in.
func (t *Tracker) OpenConversation(ctx context.Context, owner, counterpart models.Ref) ([]models.Message, error) {
	if err := t.store.MarkConversationRead(ctx, owner, counterpart); err != nil {
		return nil, err
	}
	return t.store.ForConversation(ctx, owner, counterpart)
}
