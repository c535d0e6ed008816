package rps

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ComputeCommitment returns keccak256(address || choice || blindingFactor),
// the packed layout Solidity produces for
// keccak256(abi.encodePacked(address, uint8, bytes32)).
func ComputeCommitment(player common.Address, choice Choice, blindingFactor common.Hash) common.Hash {
	return crypto.Keccak256Hash(player.Bytes(), []byte{byte(choice)}, blindingFactor.Bytes())
}

// VerifyCommitment reports whether the opening matches commitment.
func VerifyCommitment(commitment common.Hash, player common.Address, choice Choice, blindingFactor common.Hash) bool {
	return ComputeCommitment(player, choice, blindingFactor) == commitment
}

// NewBlindingFactor draws 32 bytes from r, or from crypto/rand when r is nil.
func NewBlindingFactor(r io.Reader) (common.Hash, error) {
	if r == nil {
		r = rand.Reader
	}
	var b common.Hash
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return common.Hash{}, fmt.Errorf("read blinding factor: %w", err)
	}
	return b, nil
}
