package rps

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Membership describes how a session acquires its participants.
type Membership string

const (
	// MembershipJoin sessions start with the creator and grow through Join,
	// each participant supplying its commitment when it joins.
	MembershipJoin Membership = "join"
	// MembershipRoster sessions fix every member at creation; members then
	// Commit individually.
	MembershipRoster Membership = "roster"
)

// Session is one commit-reveal game. Participants, Commitments and Choices
// are parallel slices in join order.
type Session struct {
	ID       common.Hash    `json:"id"`
	Creator  common.Address `json:"creator"`
	Mode     Membership     `json:"mode"`
	Capacity uint32         `json:"capacity"`

	Participants []common.Address `json:"participants"`
	Commitments  []common.Hash    `json:"commitments"`
	Choices      []Choice         `json:"choices"`

	index map[common.Address]int
}

func (s *Session) reindex() error {
	if len(s.Commitments) != len(s.Participants) || len(s.Choices) != len(s.Participants) {
		return fmt.Errorf("session %s: mismatched slot lengths (%d/%d/%d)",
			s.ID.Hex(), len(s.Participants), len(s.Commitments), len(s.Choices))
	}
	if uint32(len(s.Participants)) > s.Capacity {
		return fmt.Errorf("session %s: %d participants exceed capacity %d", s.ID.Hex(), len(s.Participants), s.Capacity)
	}
	s.index = make(map[common.Address]int, len(s.Participants))
	for i, p := range s.Participants {
		if _, dup := s.index[p]; dup {
			return fmt.Errorf("session %s: duplicate participant %s", s.ID.Hex(), p.Hex())
		}
		s.index[p] = i
	}
	return nil
}

func (s *Session) slot(addr common.Address) (int, bool) {
	i, ok := s.index[addr]
	return i, ok
}

func (s *Session) add(addr common.Address, commitment common.Hash) {
	s.index[addr] = len(s.Participants)
	s.Participants = append(s.Participants, addr)
	s.Commitments = append(s.Commitments, commitment)
	s.Choices = append(s.Choices, ChoiceNone)
}

// complete reports whether every slot is filled and committed.
func (s *Session) complete() bool {
	if uint32(len(s.Participants)) != s.Capacity {
		return false
	}
	for _, c := range s.Commitments {
		if c == (common.Hash{}) {
			return false
		}
	}
	return true
}

// Revealed reports whether every participant has revealed.
func (s *Session) Revealed() bool {
	if !s.complete() {
		return false
	}
	for _, c := range s.Choices {
		if c == ChoiceNone {
			return false
		}
	}
	return true
}

func (s *Session) clone() *Session {
	out := &Session{
		ID:           s.ID,
		Creator:      s.Creator,
		Mode:         s.Mode,
		Capacity:     s.Capacity,
		Participants: append([]common.Address(nil), s.Participants...),
		Commitments:  append([]common.Hash(nil), s.Commitments...),
		Choices:      append([]Choice(nil), s.Choices...),
	}
	out.index = make(map[common.Address]int, len(out.Participants))
	for i, p := range out.Participants {
		out.index[p] = i
	}
	return out
}

// SessionView is a read-only snapshot returned by GetSession. Commitments
// and RevealedChoices are parallel to Participants; unset entries hold the
// zero digest and ChoiceNone.
type SessionView struct {
	ID              common.Hash      `json:"id"`
	Creator         common.Address   `json:"creator"`
	Mode            Membership       `json:"mode"`
	Capacity        uint32           `json:"capacity"`
	Participants    []common.Address `json:"participants"`
	Commitments     []common.Hash    `json:"commitments"`
	RevealedChoices []Choice         `json:"revealedChoices"`
	Complete        bool             `json:"complete"`
	Revealed        bool             `json:"revealed"`
}

func (s *Session) view() SessionView {
	return SessionView{
		ID:              s.ID,
		Creator:         s.Creator,
		Mode:            s.Mode,
		Capacity:        s.Capacity,
		Participants:    append([]common.Address(nil), s.Participants...),
		Commitments:     append([]common.Hash(nil), s.Commitments...),
		RevealedChoices: append([]Choice(nil), s.Choices...),
		Complete:        s.complete(),
		Revealed:        s.Revealed(),
	}
}
