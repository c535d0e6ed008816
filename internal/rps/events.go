package rps

import "github.com/ethereum/go-ethereum/common"

type NotificationKind string

const (
	NotificationCreate NotificationKind = "Create"
	NotificationJoin   NotificationKind = "Join"
	NotificationCommit NotificationKind = "Commit"
	NotificationReveal NotificationKind = "Reveal"
)

// Notification is one entry of the registry's append-only log. Exactly one
// is appended per successful mutating call.
type Notification struct {
	Seq       uint64           `json:"seq"`
	Kind      NotificationKind `json:"kind"`
	SessionID common.Hash      `json:"sessionId"`

	// Participant is the creator for Create and the caller otherwise.
	Participant common.Address `json:"participant"`

	// Create only: the full member list (a single creator for join sessions).
	Members []common.Address `json:"members,omitempty"`

	// Reveal only.
	Choice Choice `json:"choice,omitempty"`
}
