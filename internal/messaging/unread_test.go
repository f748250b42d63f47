package messaging

import (
	"context"
	"testing"

	"school-messenger/internal/models"
	"school-messenger/internal/registry"
)

// The offline scenario end to end: a student messages a teacher who is not
// connected, the teacher later pulls unread, opens the conversation, and
// the unread set drains.
func TestOfflineSendIsRecoveredThroughPull(t *testing.T) {
	st := newFakeStore()
	dir := newFakeResolver()
	router := NewRouter(st, dir, registry.New())
	tracker := NewTracker(st)

	student := dir.add(models.Ref{UserID: 1, RoleID: 4}, "Ana", "Silva")
	teacher := dir.add(models.Ref{UserID: 2, RoleID: 2}, "Bruno", "Costa")

	msg, err := router.Send(context.Background(), student, SendIntent{
		Sender:   student,
		Receiver: teacher,
		Content:  "Hello",
	})
	if err != nil {
		t.Fatal(err)
	}

	unread, err := tracker.Unread(context.Background(), teacher)
	if err != nil {
		t.Fatal(err)
	}
	if len(unread) != 1 || unread[0].ID != msg.ID || unread[0].Read {
		t.Fatalf("unread set must contain the queued message unread: %v", unread)
	}

	history, err := tracker.OpenConversation(context.Background(), teacher, student)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].ID != msg.ID {
		t.Fatalf("conversation must contain the message: %v", history)
	}
	if !history[0].Read {
		t.Fatal("opening the conversation must return the message already marked read")
	}

	unread, err = tracker.Unread(context.Background(), teacher)
	if err != nil {
		t.Fatal(err)
	}
	if len(unread) != 0 {
		t.Fatalf("unread set must drain after the conversation is opened: %v", unread)
	}
}

func TestUnreadNewestFirstAndScopedToReceiver(t *testing.T) {
	st := newFakeStore()
	tracker := NewTracker(st)

	student := models.Ref{UserID: 1, RoleID: 4}
	teacher := models.Ref{UserID: 2, RoleID: 2}
	parent := models.Ref{UserID: 3, RoleID: 3}

	older := seed(t, st, student, teacher, "older")
	seed(t, st, teacher, student, "outbound, not teacher's unread")
	newer := seed(t, st, parent, teacher, "newer")

	unread, err := tracker.Unread(context.Background(), teacher)
	if err != nil {
		t.Fatal(err)
	}
	if len(unread) != 2 {
		t.Fatalf("expected 2 unread for teacher, got %d", len(unread))
	}
	if unread[0].ID != newer.ID || unread[1].ID != older.ID {
		t.Fatalf("unread must be newest first: %v", unread)
	}

	count, err := tracker.UnreadCount(context.Background(), teacher)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected unread count 2, got %d", count)
	}
}

func TestMarkConversationReadIsScopedToCounterpart(t *testing.T) {
	st := newFakeStore()
	tracker := NewTracker(st)

	student := models.Ref{UserID: 1, RoleID: 4}
	teacher := models.Ref{UserID: 2, RoleID: 2}
	parent := models.Ref{UserID: 3, RoleID: 3}

	seed(t, st, student, teacher, "from student")
	fromParent := seed(t, st, parent, teacher, "from parent")

	if err := tracker.MarkConversationRead(context.Background(), teacher, student); err != nil {
		t.Fatal(err)
	}

	unread, err := tracker.Unread(context.Background(), teacher)
	if err != nil {
		t.Fatal(err)
	}
	if len(unread) != 1 || unread[0].ID != fromParent.ID {
		t.Fatalf("only the student's messages may be marked read: %v", unread)
	}

	// Marking an already-read conversation again is a clean no-op.
	if err := tracker.MarkConversationRead(context.Background(), teacher, student); err != nil {
		t.Fatalf("re-marking must be a no-op, got %v", err)
	}
}
