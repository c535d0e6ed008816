package codec

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Cript/game-rps/internal/rps"
)

// Tx types routed by the application.
const (
	TypeCreate       = "rps/create"
	TypeCreateRoster = "rps/create_roster"
	TypeJoin         = "rps/join"
	TypeCommit       = "rps/commit"
	TypeReveal       = "rps/reveal"
)

// TxEnvelope is the transaction container.
//
// CometBFT transactions are opaque bytes; the app uses JSON envelopes whose
// sender is recovered from Sig (see SignBytes). Nonce must strictly
// increase per sender.
type TxEnvelope struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`

	Nonce uint64        `json:"nonce"`
	Sig   hexutil.Bytes `json:"sig,omitempty"`
}

func DecodeTxEnvelope(txBytes []byte) (TxEnvelope, error) {
	var env TxEnvelope
	if err := json.Unmarshal(txBytes, &env); err != nil {
		return TxEnvelope{}, fmt.Errorf("invalid tx json: %w", err)
	}
	if env.Type == "" {
		return TxEnvelope{}, fmt.Errorf("missing tx.type")
	}
	return env, nil
}

// NewTxEnvelope marshals value into an unsigned envelope.
func NewTxEnvelope(typ string, value any, nonce uint64) (TxEnvelope, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return TxEnvelope{}, fmt.Errorf("encode %s value: %w", typ, err)
	}
	return TxEnvelope{Type: typ, Value: b, Nonce: nonce}, nil
}

func (env TxEnvelope) Encode() ([]byte, error) {
	return json.Marshal(env)
}

// ---- RPS ----

type CreateTx struct {
	Commitment common.Hash `json:"commitment"`
}

type CreateRosterTx struct {
	Members []common.Address `json:"members"`
}

type JoinTx struct {
	SessionID  common.Hash `json:"sessionId"`
	Commitment common.Hash `json:"commitment"`
}

type CommitTx struct {
	SessionID  common.Hash `json:"sessionId"`
	Commitment common.Hash `json:"commitment"`
}

type RevealTx struct {
	SessionID      common.Hash `json:"sessionId"`
	Choice         rps.Choice  `json:"choice"`
	BlindingFactor common.Hash `json:"blindingFactor"`
}
