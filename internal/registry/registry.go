package registry

import (
	"hash/crc32"
	"log"
	"sync"

	"school-messenger/internal/models"
)

// Session is one live transport connection bound to a single participant.
// The registry only needs identity, liveness and a non-blocking delivery
// path, so tests can register fakes.
type Session interface {
	ID() string
	Ref() models.Ref
	Deliver(frame models.Frame) error
	Alive() bool
}

const shardCount = 16

type shard struct {
	mu sync.RWMutex
	// participant key -> session id -> session. A set per user: two
	// browser tabs are two sessions under the same key.
	users map[string]map[string]Session
}

// Registry maps participants to their live sessions. Sharded by crc32 of
// the participant key so churn on one shard never serializes churn on
// another. Purely in-memory: nothing here survives a restart, missed
// deliveries are reconciled through the message store.
type Registry struct {
	shards [shardCount]*shard
}

func New() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{users: make(map[string]map[string]Session)}
	}
	return r
}

func (r *Registry) shardFor(key string) *shard {
	return r.shards[crc32.ChecksumIEEE([]byte(key))%shardCount]
}

// Register makes the session's participant reachable for push delivery.
func (r *Registry) Register(s Session) {
	key := s.Ref().Key()
	sh := r.shardFor(key)

	sh.mu.Lock()
	set, ok := sh.users[key]
	if !ok {
		set = make(map[string]Session)
		sh.users[key] = set
	}
	set[s.ID()] = s
	total := len(set)
	sh.mu.Unlock()

	log.Printf("[REGISTRY] Session %s registered for %s (sessions for user: %d)", s.ID(), key, total)
}

// Unregister removes the session. Idempotent: disconnect paths race each
// other and both may call it.
func (r *Registry) Unregister(s Session) {
	key := s.Ref().Key()
	sh := r.shardFor(key)

	sh.mu.Lock()
	set, ok := sh.users[key]
	if ok {
		if _, present := set[s.ID()]; present {
			delete(set, s.ID())
			if len(set) == 0 {
				delete(sh.users, key)
			}
			log.Printf("[REGISTRY] Session %s unregistered for %s", s.ID(), key)
		}
	}
	sh.mu.Unlock()
}

// SessionsFor returns the live session set for the participant. Empty when
// the user is offline; absence is not an error.
func (r *Registry) SessionsFor(ref models.Ref) []Session {
	key := ref.Key()
	sh := r.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	set, ok := sh.users[key]
	if !ok {
		return nil
	}

	sessions := make([]Session, 0, len(set))
	for _, s := range set {
		sessions = append(sessions, s)
	}
	return sessions
}

func (r *Registry) IsOnline(ref models.Ref) bool {
	key := ref.Key()
	sh := r.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	return len(sh.users[key]) > 0
}

// Sweep drops sessions whose transport already died without a clean
// unregister. Returns how many were removed.
func (r *Registry) Sweep() int {
	removed := 0
	for _, sh := range r.shards {
		sh.mu.Lock()
		for key, set := range sh.users {
			for id, s := range set {
				if !s.Alive() {
					delete(set, id)
					removed++
				}
			}
			if len(set) == 0 {
				delete(sh.users, key)
			}
		}
		sh.mu.Unlock()
	}
	return removed
}
