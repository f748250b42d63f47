package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"school-messenger/internal/directory"
	"school-messenger/internal/messaging"
	"school-messenger/internal/middleware"
	"school-messenger/internal/models"
)

const dbTimeout = 5 * time.Second

type sendRequest struct {
	ReceiverID   int64  `json:"receiver_id"`
	ReceiverRole string `json:"receiver_role"`
	Subject      string `json:"subject"`
	Content      string `json:"content"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the messaging error taxonomy onto HTTP statuses.
// Validation problems belong to the client, persistence and resolution
// failures do not.
func writeError(w http.ResponseWriter, err error) {
	var validation *models.ValidationError
	if errors.As(err, &validation) {
		http.Error(w, validation.Reason, http.StatusBadRequest)
		return
	}

	var resolution *models.IdentityResolutionError
	if errors.As(err, &resolution) {
		log.Printf("[API] Directory unavailable: %v", err)
		http.Error(w, "Directory temporarily unavailable", http.StatusBadGateway)
		return
	}

	var persistence *models.PersistenceError
	if errors.As(err, &persistence) {
		log.Printf("[API] Storage failure: %v", err)
		http.Error(w, "Message could not be stored, please retry", http.StatusInternalServerError)
		return
	}

	log.Printf("[API] Unexpected error: %v", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func principal(w http.ResponseWriter, r *http.Request) (middleware.Principal, bool) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
	}
	return p, ok
}

// SendHandler accepts a send intent and returns the persisted message as
// the synchronous acknowledgment.
func SendHandler(router *messaging.Router, dir directory.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		var payload sendRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			log.Printf("[SEND] Decode error: %v", err)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
		defer cancel()

		receiver, err := refFromParams(ctx, dir, payload.ReceiverRole, payload.ReceiverID)
		if err != nil {
			writeError(w, err)
			return
		}

		msg, err := router.Send(ctx, p.Ref, messaging.SendIntent{
			Sender:   p.Ref,
			Receiver: receiver,
			Subject:  payload.Subject,
			Content:  payload.Content,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, msg)
	}
}

// UnreadHandler lists the caller's unread messages, newest first.
func UnreadHandler(tracker *messaging.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
		defer cancel()

		unread, err := tracker.Unread(ctx, p.Ref)
		if err != nil {
			writeError(w, err)
			return
		}
		if unread == nil {
			unread = []models.Message{}
		}

		writeJSON(w, http.StatusOK, unread)
	}
}

// ConversationsHandler lists the caller's recent conversations, one entry
// per counterpart, newest first.
func ConversationsHandler(aggregator *messaging.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
		defer cancel()

		conversations, err := aggregator.RecentConversations(ctx, p.Ref)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, conversations)
	}
}

// ConversationHandler returns the full history with one counterpart,
// oldest first. Opening a conversation is what marks it read, so the bulk
// transition happens here, not message-by-message from the client.
func ConversationHandler(tracker *messaging.Tracker, dir directory.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || userID <= 0 {
			http.Error(w, "Invalid counterpart id", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
		defer cancel()

		counterpart, err := refFromParams(ctx, dir, r.PathValue("role"), userID)
		if err != nil {
			writeError(w, err)
			return
		}

		messages, err := tracker.OpenConversation(ctx, p.Ref, counterpart)
		if err != nil {
			writeError(w, err)
			return
		}
		if messages == nil {
			messages = []models.Message{}
		}

		writeJSON(w, http.StatusOK, messages)
	}
}

func refFromParams(ctx context.Context, dir directory.Resolver, role string, userID int64) (models.Ref, error) {
	if role == "" {
		return models.Ref{}, &models.ValidationError{Reason: "receiver role is required"}
	}
	roleID, err := dir.RoleID(ctx, role)
	if err != nil {
		if errors.Is(err, models.ErrIdentityNotFound) {
			return models.Ref{}, &models.ValidationError{Reason: "unknown role " + role}
		}
		return models.Ref{}, err
	}
	return models.Ref{UserID: userID, RoleID: roleID}, nil
}
