package store

import (
	"fmt"
	"os"

	dbm "github.com/cosmos/cosmos-db"

	"github.com/Cript/game-rps/internal/state"
)

const cosmosDBName = "rpsstate"

// CosmosDBStore keeps records under single-byte bucket prefixes in a
// cosmos-db database (goleveldb on disk, or in memory).
type CosmosDBStore struct {
	db dbm.DB
}

func OpenCosmosDBStore(backend Backend, dir string) (*CosmosDBStore, error) {
	switch backend {
	case BackendMemDB:
		return NewCosmosDBStore(dbm.NewMemDB()), nil
	case BackendGoLevelDB:
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir home: %w", err)
		}
		db, err := dbm.NewDB(cosmosDBName, dbm.GoLevelDBBackend, dir)
		if err != nil {
			return nil, fmt.Errorf("open goleveldb: %w", err)
		}
		return NewCosmosDBStore(db), nil
	default:
		return nil, fmt.Errorf("backend %q is not a cosmos-db backend", backend)
	}
}

func NewCosmosDBStore(db dbm.DB) *CosmosDBStore {
	return &CosmosDBStore{db: db}
}

func prefixedKey(b bucket, key []byte) []byte {
	out := make([]byte, 0, 1+len(key))
	out = append(out, b.prefix)
	return append(out, key...)
}

func (s *CosmosDBStore) Load() (*state.State, error) {
	st, err := decodeRecords(func(b bucket, fn func(key, value []byte) error) error {
		it, err := s.db.Iterator([]byte{b.prefix}, []byte{b.prefix + 1})
		if err != nil {
			return err
		}
		defer it.Close()

		for ; it.Valid(); it.Next() {
			if err := fn(it.Key()[1:], it.Value()); err != nil {
				return err
			}
		}
		return it.Error()
	})
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return st, nil
}

func (s *CosmosDBStore) Save(st *state.State) error {
	recs, err := encodeRecords(st)
	if err != nil {
		return err
	}
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, r := range recs {
		if err := batch.Set(prefixedKey(r.bucket, r.key), r.value); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
	}
	if err := batch.WriteSync(); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (s *CosmosDBStore) Close() error {
	return s.db.Close()
}
