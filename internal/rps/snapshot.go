package rps

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Snapshot is the persistent form of a Registry. Sessions are kept in
// creation order.
type Snapshot struct {
	Nonce         uint64         `json:"nonce"`
	Sessions      []*Session     `json:"sessions"`
	Notifications []Notification `json:"notifications"`
}

// Snapshot returns a deep copy of the registry state.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := &Snapshot{
		Nonce:         r.nonce,
		Sessions:      make([]*Session, 0, len(r.order)),
		Notifications: cloneNotifications(r.log),
	}
	for _, id := range r.order {
		out.Sessions = append(out.Sessions, r.sessions[id].clone())
	}
	return out
}

// Restore replaces the registry state with snap after checking the session
// invariants. On error the registry is left untouched.
func (r *Registry) Restore(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot is nil")
	}

	sessions := make(map[common.Hash]*Session, len(snap.Sessions))
	order := make([]common.Hash, 0, len(snap.Sessions))
	for _, s := range snap.Sessions {
		if s == nil {
			return fmt.Errorf("snapshot: nil session")
		}
		if _, dup := sessions[s.ID]; dup {
			return fmt.Errorf("snapshot: duplicate session %s", s.ID.Hex())
		}
		c := s.clone()
		if err := c.reindex(); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		sessions[c.ID] = c
		order = append(order, c.ID)
	}
	for i, n := range snap.Notifications {
		if n.Seq != uint64(i)+1 {
			return fmt.Errorf("snapshot: notification %d has seq %d", i, n.Seq)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nonce = snap.Nonce
	r.sessions = sessions
	r.order = order
	r.log = cloneNotifications(snap.Notifications)
	return nil
}
