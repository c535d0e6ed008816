package codec

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const txAuthDomainV1 = "rps/tx/v1"

// SignBytes is the digest a sender signs:
// keccak256(DOMAIN || 0x00 || type || 0x00 || u64be(nonce) || 0x00 || keccak256(value)).
func SignBytes(typ string, value []byte, nonce uint64) []byte {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	return crypto.Keccak256(
		[]byte(txAuthDomainV1), []byte{0},
		[]byte(typ), []byte{0},
		n[:], []byte{0},
		crypto.Keccak256(value),
	)
}

// Sign fills env.Sig with a recoverable secp256k1 signature.
func Sign(env *TxEnvelope, key *ecdsa.PrivateKey) error {
	sig, err := crypto.Sign(SignBytes(env.Type, env.Value, env.Nonce), key)
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	env.Sig = sig
	return nil
}

// Sender recovers the address that signed env.
func Sender(env TxEnvelope) (common.Address, error) {
	if len(env.Sig) == 0 {
		return common.Address{}, fmt.Errorf("missing tx.sig")
	}
	if len(env.Sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid tx.sig length: got %d want %d", len(env.Sig), crypto.SignatureLength)
	}
	pub, err := crypto.SigToPub(SignBytes(env.Type, env.Value, env.Nonce), env.Sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
