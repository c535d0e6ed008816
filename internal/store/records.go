package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Cript/game-rps/internal/rps"
	"github.com/Cript/game-rps/internal/state"
)

// Record layout shared by the key-value backends. Bolt maps each bucket to
// a bolt bucket; cosmos-db prefixes keys with the bucket's byte.
//
//	meta:          "height" -> i64be, "nonce" -> u64be (session id nonce)
//	nonces:        address(20) -> u64be
//	sessions:      u64be(creation index) -> JSON session
//	notifications: u64be(seq) -> JSON notification
type bucket struct {
	name   []byte
	prefix byte
}

var (
	bucketMeta          = bucket{name: []byte("meta"), prefix: 0x01}
	bucketNonces        = bucket{name: []byte("nonces"), prefix: 0x02}
	bucketSessions      = bucket{name: []byte("sessions"), prefix: 0x03}
	bucketNotifications = bucket{name: []byte("notifications"), prefix: 0x04}

	buckets = []bucket{bucketMeta, bucketNonces, bucketSessions, bucketNotifications}

	keyHeight = []byte("height")
	keyNonce  = []byte("nonce")
)

type record struct {
	bucket bucket
	key    []byte
	value  []byte
}

func u64be(x uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, x)
	return b
}

func encodeRecords(st *state.State) ([]record, error) {
	st.Normalize()

	out := []record{
		{bucketMeta, keyHeight, u64be(uint64(st.Height))},
		{bucketMeta, keyNonce, u64be(st.RPS.Nonce)},
	}
	for addr, n := range st.NonceMax {
		out = append(out, record{bucketNonces, addr.Bytes(), u64be(n)})
	}
	for i, s := range st.RPS.Sessions {
		b, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("encode session %s: %w", s.ID.Hex(), err)
		}
		out = append(out, record{bucketSessions, u64be(uint64(i)), b})
	}
	for _, n := range st.RPS.Notifications {
		b, err := json.Marshal(n)
		if err != nil {
			return nil, fmt.Errorf("encode notification %d: %w", n.Seq, err)
		}
		out = append(out, record{bucketNotifications, u64be(n.Seq), b})
	}
	return out, nil
}

// scanFunc calls fn for every entry of a bucket in ascending key order.
type scanFunc func(b bucket, fn func(key, value []byte) error) error

func decodeRecords(scan scanFunc) (*state.State, error) {
	st := state.NewState()
	st.RPS = &rps.Snapshot{}

	err := scan(bucketMeta, func(key, value []byte) error {
		if len(value) != 8 {
			return fmt.Errorf("meta %q: invalid encoding", key)
		}
		switch string(key) {
		case string(keyHeight):
			st.Height = int64(binary.BigEndian.Uint64(value))
		case string(keyNonce):
			st.RPS.Nonce = binary.BigEndian.Uint64(value)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = scan(bucketNonces, func(key, value []byte) error {
		if len(key) != common.AddressLength || len(value) != 8 {
			return fmt.Errorf("nonce record: invalid encoding")
		}
		st.NonceMax[common.BytesToAddress(key)] = binary.BigEndian.Uint64(value)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = scan(bucketSessions, func(_, value []byte) error {
		var s rps.Session
		if err := json.Unmarshal(value, &s); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}
		st.RPS.Sessions = append(st.RPS.Sessions, &s)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = scan(bucketNotifications, func(_, value []byte) error {
		var n rps.Notification
		if err := json.Unmarshal(value, &n); err != nil {
			return fmt.Errorf("decode notification: %w", err)
		}
		st.RPS.Notifications = append(st.RPS.Notifications, n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}
