package messaging

import (
	"context"
	"errors"
	"log"
	"sort"

	"school-messenger/internal/directory"
	"school-messenger/internal/models"
	"school-messenger/internal/store"
)

// Conversation is one row of a user's conversation list: the counterpart
// with the single most recent message exchanged with them. Derived from
// the store on every request, never persisted.
type Conversation struct {
	Counterpart models.Ref     `json:"counterpart"`
	DisplayName string         `json:"display_name"`
	Known       bool           `json:"known"`
	LastMessage models.Message `json:"last_message"`
}

type Aggregator struct {
	store store.MessageStore
	dir   directory.Resolver
}

func NewAggregator(s store.MessageStore, dir directory.Resolver) *Aggregator {
	return &Aggregator{
		store: s,
		dir:   dir,
	}
}

// RecentConversations returns one entry per distinct counterpart of ref,
// newest conversation first. A counterpart whose account no longer
// resolves is annotated as unknown rather than omitted: hiding the row
// would strand its unread messages with no way to reach them from the UI.
func (a *Aggregator) RecentConversations(ctx context.Context, ref models.Ref) ([]Conversation, error) {
	latest, err := a.store.MostRecentPerCounterpart(ctx, ref)
	if err != nil {
		return nil, err
	}

	conversations := make([]Conversation, 0, len(latest))
	for i := range latest {
		msg := latest[i]
		counterpart := msg.Counterpart(ref)

		entry := Conversation{
			Counterpart: counterpart,
			LastMessage: msg,
		}

		identity, err := a.dir.Resolve(ctx, counterpart)
		switch {
		case err == nil:
			entry.DisplayName = identity.DisplayName()
			entry.Known = true
		case errors.Is(err, models.ErrIdentityNotFound):
			entry.DisplayName = "Unknown user"
		default:
			// Resolution trouble must never break the whole list.
			log.Printf("[AGGREGATOR] %v", &models.IdentityResolutionError{Ref: counterpart, Err: err})
			entry.DisplayName = "Unknown user"
		}

		conversations = append(conversations, entry)
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[j].LastMessage.Before(&conversations[i].LastMessage)
	})

	return conversations, nil
}
