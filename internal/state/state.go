package state

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Cript/game-rps/internal/rps"
)

// State is everything the application persists between blocks.
type State struct {
	Height int64 `json:"height"`

	// NonceMax holds the last accepted tx nonce per sender, for replay
	// protection.
	NonceMax map[common.Address]uint64 `json:"nonceMax,omitempty"`

	RPS *rps.Snapshot `json:"rps"`
}

func NewState() *State {
	return &State{
		Height:   0,
		NonceMax: map[common.Address]uint64{},
		RPS:      &rps.Snapshot{},
	}
}

// Normalize fills in containers missing from older or partial encodings.
func (s *State) Normalize() {
	if s.NonceMax == nil {
		s.NonceMax = map[common.Address]uint64{}
	}
	if s.RPS == nil {
		s.RPS = &rps.Snapshot{}
	}
}

// CheckNonce rejects nonces that are not strictly greater than the last
// accepted one for sender.
func (s *State) CheckNonce(sender common.Address, nonce uint64) error {
	last := s.NonceMax[sender]
	if nonce <= last {
		return fmt.Errorf("stale nonce: got %d, last accepted %d", nonce, last)
	}
	return nil
}

func (s *State) AcceptNonce(sender common.Address, nonce uint64) {
	s.NonceMax[sender] = nonce
}

func (s *State) AppHash() []byte {
	// encoding/json sorts map keys, but the normalized view keeps the hash
	// independent of how the maps are encoded.
	type nonceKV struct {
		Sender common.Address `json:"sender"`
		Nonce  uint64         `json:"nonce"`
	}

	nonces := make([]nonceKV, 0, len(s.NonceMax))
	for k, v := range s.NonceMax {
		nonces = append(nonces, nonceKV{Sender: k, Nonce: v})
	}
	sort.Slice(nonces, func(i, j int) bool {
		return nonces[i].Sender.Cmp(nonces[j].Sender) < 0
	})

	normalized := struct {
		Height   int64         `json:"height"`
		NonceMax []nonceKV     `json:"nonceMax,omitempty"`
		RPS      *rps.Snapshot `json:"rps"`
	}{
		Height:   s.Height,
		NonceMax: nonces,
		RPS:      s.RPS,
	}

	b, _ := json.Marshal(normalized)
	sum := sha256.Sum256(b)
	return sum[:]
}

// Encode and Decode are the JSON form used by the file store.
func (s *State) Encode() ([]byte, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return b, nil
}

func Decode(b []byte) (*State, error) {
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	st.Normalize()
	return &st, nil
}
