package models

import (
	"strconv"
	"time"
)

// Role names seeded in the role_types reference table. Lookups always go
// through the directory, these constants exist for seeds and tests.
const (
	RoleAdministrator = "administrator"
	RoleTeacher       = "teacher"
	RoleParent        = "parent"
	RoleStudent       = "student"
)

const DefaultSubject = "No subject"

// Ref identifies a participant: a user id tagged with the role_types id
// that says which directory the user lives in. Ids are only unique within
// a single directory, so a Ref is always compared as a pair.
type Ref struct {
	UserID int64 `json:"user_id"`
	RoleID int64 `json:"role_id"`
}

func (r Ref) Valid() bool {
	return r.UserID > 0 && r.RoleID > 0
}

// Key is the registry map key for this participant.
func (r Ref) Key() string {
	return strconv.FormatInt(r.RoleID, 10) + ":" + strconv.FormatInt(r.UserID, 10)
}

type RoleType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Identity is the display identity a directory resolves a Ref to.
type Identity struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (i Identity) DisplayName() string {
	return i.FirstName + " " + i.LastName
}

// Message is immutable after creation except for Read, which transitions
// unread -> read exactly once. ID is assigned by the store and breaks
// ordering ties between equal CreatedAt values.
type Message struct {
	ID        int64     `json:"id"`
	Sender    Ref       `json:"sender"`
	Receiver  Ref       `json:"receiver"`
	Subject   string    `json:"subject"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}

// Counterpart returns the other participant of the message relative to ref.
func (m *Message) Counterpart(ref Ref) Ref {
	if m.Sender == ref {
		return m.Receiver
	}
	return m.Sender
}

// Before reports whether m precedes other in conversation order.
func (m *Message) Before(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}
