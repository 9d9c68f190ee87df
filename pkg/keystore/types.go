package keystore

import "time"

// CurrentVersion is the keys.toml schema version.
const CurrentVersion = 0

// Entry is one cached plaintext key. The gateway only reveals a key's value
// when it is issued, so this cache is the only place it can be recovered.
type Entry struct {
	Name      string    `toml:"name"`
	Secret    string    `toml:"secret"`
	Tenant    string    `toml:"tenant,omitempty"`
	CreatedAt time.Time `toml:"created_at"`
}

// State is the persisted form of the store.
type State struct {
	Version int `toml:"version"`

	// AdminKey is the admin credential, empty when none is held.
	AdminKey string `toml:"admin_key,omitempty"`

	// Keys are ordered most recent first.
	Keys []Entry `toml:"keys"`
}

func (s *State) clone() *State {
	if s == nil {
		return &State{Version: CurrentVersion}
	}
	c := *s
	c.Keys = append([]Entry(nil), s.Keys...)
	return &c
}

// KeyOption is one selectable key in a reconciled key list.
type KeyOption struct {
	ID     string
	Name   string
	Tenant string

	// Retrievable reports whether the plaintext is cached locally. Options
	// that are not retrievable exist on the gateway but were issued
	// elsewhere and must be re-issued to be used from here.
	Retrievable bool
}
