package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Cript/game-rps/internal/state"
)

const stateFileName = "state.json"

// FileStore keeps the whole state as one JSON document.
type FileStore struct {
	home string
}

func NewFileStore(home string) *FileStore {
	return &FileStore{home: home}
}

func (s *FileStore) Load() (*state.State, error) {
	path := filepath.Join(s.home, stateFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return state.NewState(), nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	return state.Decode(b)
}

func (s *FileStore) Save(st *state.State) error {
	if err := os.MkdirAll(s.home, 0o755); err != nil {
		return fmt.Errorf("mkdir home: %w", err)
	}
	b, err := st.Encode()
	if err != nil {
		return err
	}
	path := filepath.Join(s.home, stateFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
