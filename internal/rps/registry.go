package rps

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Params are the registry-wide session limits.
type Params struct {
	// Capacity is the number of participants a join session accepts,
	// creator included.
	Capacity uint32 `json:"capacity" mapstructure:"capacity"`
	// MaxRosterSize bounds the member list of roster sessions.
	MaxRosterSize uint32 `json:"maxRosterSize" mapstructure:"max_roster_size"`
}

func DefaultParams() Params {
	return Params{Capacity: 2, MaxRosterSize: 16}
}

func (p Params) Validate() error {
	if p.Capacity < 2 {
		return fmt.Errorf("capacity must be at least 2, got %d", p.Capacity)
	}
	if p.MaxRosterSize < 2 {
		return fmt.Errorf("max roster size must be at least 2, got %d", p.MaxRosterSize)
	}
	return nil
}

type Option func(*Registry)

func WithParams(p Params) Option {
	return func(r *Registry) { r.params = p }
}

func WithSessionIDGenerator(gen SessionIDGenerator) Option {
	return func(r *Registry) { r.newID = gen }
}

// Registry is the authoritative store of sessions and the only mutator of
// their state. Every method runs under the registry lock and checks all
// preconditions before touching state, so a failed call changes nothing.
type Registry struct {
	mu sync.RWMutex

	params Params
	newID  SessionIDGenerator

	nonce    uint64
	salt     []byte
	sessions map[common.Hash]*Session
	order    []common.Hash
	log      []Notification
}

func NewRegistry(opts ...Option) (*Registry, error) {
	r := &Registry{
		params:   DefaultParams(),
		newID:    KeccakSessionID,
		sessions: map[common.Hash]*Session{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.params.Validate(); err != nil {
		return nil, err
	}
	if r.newID == nil {
		return nil, fmt.Errorf("session id generator is nil")
	}
	return r, nil
}

func (r *Registry) Params() Params {
	return r.params
}

// Reseed replaces the salt mixed into new session ids. The ABCI layer
// reseeds with the block hash before executing a block.
func (r *Registry) Reseed(salt []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.salt = append([]byte(nil), salt...)
}

// CreateSession opens a join session with the creator in the first slot.
func (r *Registry) CreateSession(creator common.Address, commitment common.Hash) (common.Hash, error) {
	if commitment == (common.Hash{}) {
		return common.Hash{}, ErrInvalidRequest.Wrap("empty commitment")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Session{
		ID:       r.allocateID(creator),
		Creator:  creator,
		Mode:     MembershipJoin,
		Capacity: r.params.Capacity,
		index:    map[common.Address]int{},
	}
	s.add(creator, commitment)
	r.insert(s)
	r.emit(Notification{
		Kind:        NotificationCreate,
		SessionID:   s.ID,
		Participant: creator,
		Members:     []common.Address{creator},
	})
	return s.ID, nil
}

// CreateRoster opens a session whose members are fixed up front. The
// creator does not have to be one of them. Every member starts without a
// commitment.
func (r *Registry) CreateRoster(creator common.Address, members []common.Address) (common.Hash, error) {
	if len(members) < 2 {
		return common.Hash{}, ErrInvalidRequest.Wrapf("need at least 2 members, got %d", len(members))
	}
	if uint32(len(members)) > r.params.MaxRosterSize {
		return common.Hash{}, ErrInvalidRequest.Wrapf("%d members exceed the limit of %d", len(members), r.params.MaxRosterSize)
	}
	seen := make(map[common.Address]struct{}, len(members))
	for _, m := range members {
		if m == (common.Address{}) {
			return common.Hash{}, ErrInvalidRequest.Wrap("zero member address")
		}
		if _, dup := seen[m]; dup {
			return common.Hash{}, ErrInvalidRequest.Wrapf("duplicate member %s", m.Hex())
		}
		seen[m] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Session{
		ID:       r.allocateID(creator),
		Creator:  creator,
		Mode:     MembershipRoster,
		Capacity: uint32(len(members)),
		index:    make(map[common.Address]int, len(members)),
	}
	for _, m := range members {
		s.add(m, common.Hash{})
	}
	r.insert(s)
	r.emit(Notification{
		Kind:        NotificationCreate,
		SessionID:   s.ID,
		Participant: creator,
		Members:     append([]common.Address(nil), members...),
	})
	return s.ID, nil
}

// Join appends joiner and its commitment to a join session.
func (r *Registry) Join(id common.Hash, joiner common.Address, commitment common.Hash) error {
	if commitment == (common.Hash{}) {
		return ErrInvalidRequest.Wrap("empty commitment")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return ErrNotFound.Wrap(id.Hex())
	}
	if _, member := s.slot(joiner); member {
		return ErrAlreadyJoined.Wrap(joiner.Hex())
	}
	if uint32(len(s.Participants)) >= s.Capacity {
		return ErrCapacityExceeded.Wrapf("capacity %d", s.Capacity)
	}

	s.add(joiner, commitment)
	r.emit(Notification{Kind: NotificationJoin, SessionID: id, Participant: joiner})
	return nil
}

// Commit stores a roster member's commitment. Join sessions collect
// commitments at join time, so committing there always fails with
// ErrAlreadyCommitted for members.
func (r *Registry) Commit(id common.Hash, member common.Address, commitment common.Hash) error {
	if commitment == (common.Hash{}) {
		return ErrInvalidRequest.Wrap("empty commitment")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return ErrNotFound.Wrap(id.Hex())
	}
	i, ok := s.slot(member)
	if !ok {
		return ErrNotAMember.Wrap(member.Hex())
	}
	if s.Commitments[i] != (common.Hash{}) {
		return ErrAlreadyCommitted
	}

	s.Commitments[i] = commitment
	r.emit(Notification{Kind: NotificationCommit, SessionID: id, Participant: s.Participants[i]})
	return nil
}

// Reveal opens revealer's commitment and records its choice.
func (r *Registry) Reveal(id common.Hash, revealer common.Address, choice Choice, blindingFactor common.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return ErrNotFound.Wrap(id.Hex())
	}
	i, member := s.slot(revealer)
	if !member {
		return ErrNotAMember.Wrap(revealer.Hex())
	}
	if !s.complete() {
		return ErrIncompleteCommitments.Wrapf("%d/%d slots committed", s.committed(), s.Capacity)
	}
	if s.Choices[i] != ChoiceNone {
		return ErrAlreadyRevealed.Wrap(revealer.Hex())
	}
	if !choice.Valid() {
		return ErrInvalidReveal.Wrapf("choice %d out of range", uint8(choice))
	}
	if !VerifyCommitment(s.Commitments[i], revealer, choice, blindingFactor) {
		return ErrInvalidReveal
	}

	s.Choices[i] = choice
	r.emit(Notification{Kind: NotificationReveal, SessionID: id, Participant: revealer, Choice: choice})
	return nil
}

// GetSession returns a copy of the session state.
func (r *Registry) GetSession(id common.Hash) (SessionView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return SessionView{}, ErrNotFound.Wrap(id.Hex())
	}
	return s.view(), nil
}

// SessionIDs lists every session in creation order.
func (r *Registry) SessionIDs() []common.Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]common.Hash(nil), r.order...)
}

// LastSequence is the sequence number of the newest notification, 0 when
// the log is empty.
func (r *Registry) LastSequence() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.log))
}

// Notifications returns up to limit log entries starting at sequence from
// (1-based). A non-positive limit returns everything after from.
func (r *Registry) Notifications(from uint64, limit int) []Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if from == 0 {
		from = 1
	}
	if from > uint64(len(r.log)) {
		return nil
	}
	out := r.log[from-1:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return cloneNotifications(out)
}

func (r *Registry) allocateID(creator common.Address) common.Hash {
	for {
		id := r.newID(creator, r.nonce, r.salt)
		r.nonce++
		if _, taken := r.sessions[id]; !taken && id != (common.Hash{}) {
			return id
		}
	}
}

func (r *Registry) insert(s *Session) {
	r.sessions[s.ID] = s
	r.order = append(r.order, s.ID)
}

func (r *Registry) emit(n Notification) {
	n.Seq = uint64(len(r.log)) + 1
	r.log = append(r.log, n)
}

func (s *Session) committed() int {
	n := 0
	for _, c := range s.Commitments {
		if c != (common.Hash{}) {
			n++
		}
	}
	return n
}

func cloneNotifications(in []Notification) []Notification {
	out := make([]Notification, len(in))
	for i, n := range in {
		n.Members = append([]common.Address(nil), n.Members...)
		if len(n.Members) == 0 {
			n.Members = nil
		}
		out[i] = n
	}
	return out
}
