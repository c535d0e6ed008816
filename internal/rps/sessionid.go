package rps

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const sessionIDDomain = "rps/session/v1"

// SessionIDGenerator derives a session id from the creator, a registry-wide
// nonce and a salt. It must be deterministic: every replica of the state
// machine has to allocate the same id for the same transaction.
type SessionIDGenerator func(creator common.Address, nonce uint64, salt []byte) common.Hash

// KeccakSessionID hashes domain || creator || u64be(nonce) || salt.
//
// Ids are 256-bit keccak outputs, so two distinct inputs collide with
// probability ~2^-256; the registry still checks for a live session with
// the same id and retries with the next nonce.
func KeccakSessionID(creator common.Address, nonce uint64, salt []byte) common.Hash {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	return crypto.Keccak256Hash([]byte(sessionIDDomain), creator.Bytes(), n[:], salt)
}
