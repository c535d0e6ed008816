package rps

import errorsmod "cosmossdk.io/errors"

// Codespace is the ABCI codespace of the session registry errors.
const Codespace = "rps"

// Session registry sentinel errors. Code 1 is reserved by the errors
// package for internal errors.
var (
	ErrInvalidRequest        = errorsmod.Register(Codespace, 2, "invalid request")
	ErrNotFound              = errorsmod.Register(Codespace, 3, "game does not exist")
	ErrNotAMember            = errorsmod.Register(Codespace, 4, "not a member of the game")
	ErrAlreadyJoined         = errorsmod.Register(Codespace, 5, "already joined")
	ErrCapacityExceeded      = errorsmod.Register(Codespace, 6, "game is full")
	ErrIncompleteCommitments = errorsmod.Register(Codespace, 7, "didn't receive all commitments")
	ErrInvalidReveal         = errorsmod.Register(Codespace, 8, "invalid hash")
	ErrAlreadyRevealed       = errorsmod.Register(Codespace, 9, "choice already revealed")
	ErrAlreadyCommitted      = errorsmod.Register(Codespace, 10, "commitment already added")
	ErrInvalidChoice         = errorsmod.Register(Codespace, 11, "invalid choice")
)
