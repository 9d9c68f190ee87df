// Package keystore caches the plaintext API keys issued by this client and
// the admin credential, and reconciles them against the gateway's key list.
package keystore

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/papercomputeco/portal/pkg/clock"
	"github.com/papercomputeco/portal/pkg/gateway"
)

// DefaultRetention is the maximum number of cached keys.
const DefaultRetention = 12

var (
	// ErrKeyStale is returned when a cached key is no longer active on the
	// gateway.
	ErrKeyStale = errors.New("stored key is no longer active on the gateway")

	// ErrKeyNotStored is returned when a key's plaintext was never cached
	// here.
	ErrKeyNotStored = errors.New("key is not stored locally")
)

// Store is the single owner of the cached keys. All methods are safe for
// concurrent use. Every mutation is persisted before it becomes visible;
// a failed save leaves the store unchanged.
type Store struct {
	mu        sync.Mutex
	backend   Backend
	state     *State
	retention int
	clock     clock.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithRetention overrides DefaultRetention. Values below one are ignored.
func WithRetention(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.retention = n
		}
	}
}

// WithClock sets the clock used for CreatedAt.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// New loads a Store from backend.
func New(backend Backend, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, errors.New("keystore backend is required")
	}

	s := &Store{
		backend:   backend,
		retention: DefaultRetention,
		clock:     clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	state, err := backend.Load()
	if err != nil {
		return nil, err
	}
	s.state = state.clone()
	s.state.Keys = s.trim(s.state.Keys)
	return s, nil
}

// mutate applies fn to a copy of the state and commits it once saved.
func (s *Store) mutate(fn func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	fn(next)
	next.Keys = s.trim(next.Keys)

	if err := s.backend.Save(next); err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *Store) trim(keys []Entry) []Entry {
	if len(keys) > s.retention {
		return keys[:s.retention]
	}
	return keys
}

// Upsert caches secret under name, replacing any entry of the same name and
// moving it to the front.
func (s *Store) Upsert(name, secret string) error {
	return s.Put(Entry{Name: name, Secret: secret})
}

// Put is Upsert with tenant bookkeeping. A zero CreatedAt is set to now.
func (s *Store) Put(e Entry) error {
	if e.Name == "" {
		return errors.New("key name is required")
	}
	if e.Secret == "" {
		return errors.New("key secret is required")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock.Now().UTC()
	}

	return s.mutate(func(st *State) {
		st.Keys = slices.DeleteFunc(st.Keys, func(x Entry) bool { return x.Name == e.Name })
		st.Keys = append([]Entry{e}, st.Keys...)
	})
}

// Get returns the cached secret for name.
func (s *Store) Get(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.state.Keys {
		if e.Name == name {
			return e.Secret, true
		}
	}
	return "", false
}

// Entries returns the cached entries, most recent first.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.Keys)
}

// Remove drops the entry for name. Removing an absent name is a no-op.
func (s *Store) Remove(name string) error {
	return s.mutate(func(st *State) {
		st.Keys = slices.DeleteFunc(st.Keys, func(x Entry) bool { return x.Name == name })
	})
}

// ActiveEntries returns the cached entries whose name is active on the
// gateway, in cache order.
func (s *Store) ActiveEntries(active NameSet) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for _, e := range s.state.Keys {
		if active.Has(e.Name) {
			out = append(out, e)
		}
	}
	return out
}

// Reconcile lists every active server key as a selectable option, in server
// order, flagging whether its plaintext is cached.
func (s *Store) Reconcile(keys []gateway.APIKeyEntry) []KeyOption {
	s.mu.Lock()
	cached := make(NameSet, len(s.state.Keys))
	for _, e := range s.state.Keys {
		cached[e.Name] = struct{}{}
	}
	s.mu.Unlock()

	var opts []KeyOption
	for _, k := range keys {
		if !k.Active {
			continue
		}
		name := k.DisplayName()
		opts = append(opts, KeyOption{
			ID:          k.ID,
			Name:        name,
			Tenant:      k.Tenant,
			Retrievable: cached.Has(name),
		})
	}
	return opts
}

// Resolve returns the secret for name if it is both cached and active.
// Staleness is only checked here, on use; stale entries are not evicted.
func (s *Store) Resolve(name string, active NameSet) (string, error) {
	secret, ok := s.Get(name)
	switch {
	case !ok:
		return "", fmt.Errorf("%q: %w", name, ErrKeyNotStored)
	case !active.Has(name):
		return "", fmt.Errorf("%q: %w", name, ErrKeyStale)
	}
	return secret, nil
}

// AdminKey returns the admin credential, or "" when none is held.
func (s *Store) AdminKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AdminKey
}

// SetAdminKey stores the admin credential.
func (s *Store) SetAdminKey(key string) error {
	return s.mutate(func(st *State) {
		st.AdminKey = key
	})
}

// ClearAdminKey forgets the admin credential.
func (s *Store) ClearAdminKey() error {
	return s.SetAdminKey("")
}

// Clear drops every cached key and the admin credential.
func (s *Store) Clear() error {
	return s.mutate(func(st *State) {
		st.AdminKey = ""
		st.Keys = nil
	})
}
