package messaging

import (
	"context"
	"errors"
	"log"
	"strings"

	"school-messenger/internal/directory"
	"school-messenger/internal/models"
	"school-messenger/internal/registry"
	"school-messenger/internal/store"
)

// SendIntent is an outbound message before it has an identity. Origin is
// the session id the intent arrived on, so the sender's own device is not
// echoed its message twice.
type SendIntent struct {
	Sender   models.Ref
	Receiver models.Ref
	Subject  string
	Content  string
	Origin   string
}

// Router drives each send attempt through
// Submitted -> Persisted -> (Delivered | Queued) -> Acknowledged.
// Persistence is the commit point: push to live sessions is best-effort on
// top of it, and a recipient with no sessions simply finds the message on
// the next unread/conversation query.
type Router struct {
	store store.MessageStore
	dir   directory.Resolver
	reg   *registry.Registry
}

func NewRouter(s store.MessageStore, dir directory.Resolver, reg *registry.Registry) *Router {
	return &Router{
		store: s,
		dir:   dir,
		reg:   reg,
	}
}

// Send validates and persists the intent, pushes to the recipient's live
// sessions and returns the canonical persisted message as the sender's
// acknowledgment. Everything before Append is side-effect free and
// abortable; after Append the message exists no matter what.
func (r *Router) Send(ctx context.Context, principal models.Ref, intent SendIntent) (*models.Message, error) {
	if intent.Sender != principal {
		log.Printf("[ROUTER] Impersonation attempt: session %s sending as %s", principal.Key(), intent.Sender.Key())
		return nil, &models.ValidationError{Reason: "sender does not match authenticated session"}
	}
	if !intent.Sender.Valid() || !intent.Receiver.Valid() {
		return nil, &models.ValidationError{Reason: "participant reference is missing id or role"}
	}
	if intent.Sender == intent.Receiver {
		return nil, &models.ValidationError{Reason: "cannot send a message to yourself"}
	}
	if strings.TrimSpace(intent.Content) == "" {
		return nil, &models.ValidationError{Reason: "content is empty"}
	}

	// Both participants must resolve against their directories before
	// anything is written. An unresolvable pair fails closed.
	if err := r.resolveParticipant(ctx, intent.Sender, "sender"); err != nil {
		return nil, err
	}
	if err := r.resolveParticipant(ctx, intent.Receiver, "receiver"); err != nil {
		return nil, err
	}

	msg := &models.Message{
		Sender:   intent.Sender,
		Receiver: intent.Receiver,
		Subject:  intent.Subject,
		Content:  intent.Content,
	}

	if err := r.store.Append(ctx, msg); err != nil {
		// Surfaced as-is: the sender must never see a dropped send as
		// succeeded, and must not be retried here (duplicate risk).
		return nil, err
	}

	r.push(msg, intent.Origin)

	return msg, nil
}

func (r *Router) resolveParticipant(ctx context.Context, ref models.Ref, who string) error {
	_, err := r.dir.Resolve(ctx, ref)
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrIdentityNotFound) {
		return &models.ValidationError{Reason: who + " " + ref.Key() + " does not exist"}
	}
	return &models.IdentityResolutionError{Ref: ref, Err: err}
}

// push delivers to every live session of the recipient, and echoes to the
// sender's other sessions so multi-device views converge. Fire-and-forget
// per session: one slow or dead socket neither blocks the others nor
// touches the persisted state.
func (r *Router) push(msg *models.Message, origin string) {
	frame := models.Frame{Type: models.FrameMessage, Message: msg}

	delivered := 0
	for _, s := range r.reg.SessionsFor(msg.Receiver) {
		if err := s.Deliver(frame); err != nil {
			log.Printf("[ROUTER] %v", &models.DeliveryError{SessionID: s.ID(), Err: err})
			continue
		}
		delivered++
	}

	for _, s := range r.reg.SessionsFor(msg.Sender) {
		if s.ID() == origin {
			continue
		}
		if err := s.Deliver(frame); err != nil {
			log.Printf("[ROUTER] %v", &models.DeliveryError{SessionID: s.ID(), Err: err})
		}
	}

	if delivered > 0 {
		log.Printf("[ROUTER] Message %d delivered to %d live session(s) of %s", msg.ID, delivered, msg.Receiver.Key())
	} else {
		log.Printf("[ROUTER] Message %d queued for offline %s", msg.ID, msg.Receiver.Key())
	}
}
