package messaging

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"school-messenger/internal/models"
)

// In-memory stand-ins injected through the store/resolver/session
// interfaces so the routing and aggregation logic is tested without a
// database or a socket.

type fakeStore struct {
	mu         sync.Mutex
	nextID     int64
	base       time.Time
	messages   []models.Message
	failAppend error
}

func newFakeStore() *fakeStore {
	return &fakeStore{base: time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)}
}

func (f *fakeStore) Append(_ context.Context, m *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAppend != nil {
		return f.failAppend
	}
	if m.Content == "" {
		return &models.ValidationError{Reason: "content is empty"}
	}

	f.nextID++
	m.ID = f.nextID
	if m.Subject == "" {
		m.Subject = models.DefaultSubject
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = f.base.Add(time.Duration(f.nextID) * time.Second)
	}
	m.Read = false

	f.messages = append(f.messages, *m)
	return nil
}

func (f *fakeStore) ForConversation(_ context.Context, a, b models.Ref) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Message
	for _, m := range f.messages {
		if (m.Sender == a && m.Receiver == b) || (m.Sender == b && m.Receiver == a) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(&out[j]) })
	return out, nil
}

func (f *fakeStore) UnreadFor(_ context.Context, ref models.Ref) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Message
	for _, m := range f.messages {
		if m.Receiver == ref && !m.Read {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Before(&out[i]) })
	return out, nil
}

func (f *fakeStore) MarkRead(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.messages {
		if f.messages[i].ID == id {
			f.messages[i].Read = true
		}
	}
	return nil
}

func (f *fakeStore) MarkConversationRead(_ context.Context, owner, counterpart models.Ref) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.messages {
		if f.messages[i].Receiver == owner && f.messages[i].Sender == counterpart {
			f.messages[i].Read = true
		}
	}
	return nil
}

func (f *fakeStore) MostRecentPerCounterpart(_ context.Context, ref models.Ref) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	latest := make(map[string]models.Message)
	for _, m := range f.messages {
		if m.Sender != ref && m.Receiver != ref {
			continue
		}
		key := m.Counterpart(ref).Key()
		if current, ok := latest[key]; !ok || current.Before(&m) {
			latest[key] = m
		}
	}

	out := make([]models.Message, 0, len(latest))
	for _, m := range latest {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeStore) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

type fakeResolver struct {
	identities map[string]models.Identity
	roleIDs    map[string]int64
	roleNames  map[int64]string
	err        error
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		identities: make(map[string]models.Identity),
		roleIDs: map[string]int64{
			models.RoleAdministrator: 1,
			models.RoleTeacher:       2,
			models.RoleParent:        3,
			models.RoleStudent:       4,
		},
		roleNames: map[int64]string{
			1: models.RoleAdministrator,
			2: models.RoleTeacher,
			3: models.RoleParent,
			4: models.RoleStudent,
		},
	}
}

func (f *fakeResolver) add(ref models.Ref, first, last string) models.Ref {
	f.identities[ref.Key()] = models.Identity{FirstName: first, LastName: last}
	return ref
}

func (f *fakeResolver) Resolve(_ context.Context, ref models.Ref) (models.Identity, error) {
	if f.err != nil {
		return models.Identity{}, f.err
	}
	identity, ok := f.identities[ref.Key()]
	if !ok {
		return models.Identity{}, models.ErrIdentityNotFound
	}
	return identity, nil
}

func (f *fakeResolver) RoleID(_ context.Context, name string) (int64, error) {
	id, ok := f.roleIDs[name]
	if !ok {
		return 0, models.ErrIdentityNotFound
	}
	return id, nil
}

func (f *fakeResolver) RoleName(_ context.Context, id int64) (string, error) {
	name, ok := f.roleNames[id]
	if !ok {
		return "", models.ErrIdentityNotFound
	}
	return name, nil
}

type fakeSession struct {
	id          string
	ref         models.Ref
	failDeliver bool

	mu     sync.Mutex
	frames []models.Frame
}

func (f *fakeSession) ID() string      { return f.id }
func (f *fakeSession) Ref() models.Ref { return f.ref }
func (f *fakeSession) Alive() bool     { return true }

func (f *fakeSession) Deliver(frame models.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDeliver {
		return errDeliverRefused
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeSession) received() []models.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Frame, len(f.frames))
	copy(out, f.frames)
	return out
}

var errDeliverRefused = errors.New("send buffer full")
