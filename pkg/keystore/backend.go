package keystore

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/portal/pkg/dotdir"
)

// FileName is the key cache file inside the .portal/ directory.
const FileName = "keys.toml"

// Backend persists the store state.
type Backend interface {
	Load() (*State, error)
	Save(*State) error
}

// MemoryBackend keeps state in memory.
type MemoryBackend struct {
	mu    sync.Mutex
	state *State

	// SaveErr, when set, is returned by every Save.
	SaveErr error
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) Load() (*State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.clone(), nil
}

func (b *MemoryBackend) Save(s *State) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SaveErr != nil {
		return b.SaveErr
	}
	b.state = s.clone()
	return nil
}

// FileBackend stores state as TOML with 0600 permissions, since it holds
// plaintext credentials.
type FileBackend struct {
	path string
}

// NewFileBackend resolves keys.toml in the .portal/ directory. A non-empty
// override is used as the directory.
func NewFileBackend(override string) (*FileBackend, error) {
	path, err := dotdir.NewManager().File(override, FileName)
	if err != nil {
		return nil, err
	}
	return &FileBackend{path: path}, nil
}

// Path returns the resolved file path.
func (b *FileBackend) Path() string {
	return b.path
}

// Load returns an empty state when the file does not exist yet.
func (b *FileBackend) Load() (*State, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &State{Version: CurrentVersion}, nil
		}
		return nil, fmt.Errorf("reading key cache: %w", err)
	}

	state := &State{}
	if err := toml.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing key cache: %w", err)
	}
	return state, nil
}

func (b *FileBackend) Save(s *State) error {
	if s == nil {
		return errors.New("cannot save nil key cache")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("encoding key cache: %w", err)
	}

	if err := os.WriteFile(b.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing key cache: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(b.path, 0o600); err != nil {
		return fmt.Errorf("restricting key cache permissions: %w", err)
	}
	return nil
}
