package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/Cript/game-rps/internal/state"
)

const boltFileName = "state.db"

// BoltStore keeps one bolt bucket per record kind.
type BoltStore struct {
	db *bbolt.DB
}

func OpenBoltStore(dir string) (*BoltStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir home: %w", err)
	}
	db, err := bbolt.Open(filepath.Join(dir, boltFileName), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b.name); err != nil {
				return fmt.Errorf("create bucket %s: %w", b.name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Load() (*state.State, error) {
	var st *state.State
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		st, err = decodeRecords(func(b bucket, fn func(key, value []byte) error) error {
			bkt := tx.Bucket(b.name)
			if bkt == nil {
				return nil
			}
			// ForEach walks keys in byte order.
			return bkt.ForEach(fn)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return st, nil
}

func (s *BoltStore) Save(st *state.State) error {
	recs, err := encodeRecords(st)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		for _, r := range recs {
			bkt := tx.Bucket(r.bucket.name)
			if bkt == nil {
				return fmt.Errorf("missing bucket %s", r.bucket.name)
			}
			if err := bkt.Put(r.key, r.value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
