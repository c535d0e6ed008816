// Package store persists application state between blocks.
package store

import (
	"fmt"
	"strings"

	"github.com/Cript/game-rps/internal/state"
)

// Store loads the state at startup and saves it on every ABCI Commit.
type Store interface {
	Load() (*state.State, error)
	Save(st *state.State) error
	Close() error
}

type Backend string

const (
	BackendFile      Backend = "file"
	BackendBolt      Backend = "boltdb"
	BackendGoLevelDB Backend = "goleveldb"
	BackendMemDB     Backend = "memdb"
)

func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendFile, BackendBolt, BackendGoLevelDB, BackendMemDB:
		return b, nil
	case "":
		return BackendFile, nil
	default:
		return "", fmt.Errorf("unknown db backend %q (want file|boltdb|goleveldb|memdb)", s)
	}
}

// Open opens the backend rooted at dir.
func Open(backend Backend, dir string) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(dir), nil
	case BackendBolt:
		return OpenBoltStore(dir)
	case BackendGoLevelDB, BackendMemDB:
		return OpenCosmosDBStore(backend, dir)
	default:
		return nil, fmt.Errorf("unknown db backend %q", backend)
	}
}
