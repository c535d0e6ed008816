// Package client submits signed session transactions to an rpsd node through
// CometBFT RPC and reads back the app's query paths.
package client

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"sync"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/cometbft/cometbft/libs/bytes"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	ctypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Cript/game-rps/internal/codec"
	"github.com/Cript/game-rps/internal/rps"
)

// Node is the subset of the CometBFT RPC client used here.
type Node interface {
	BroadcastTxCommit(ctx context.Context, tx cmttypes.Tx) (*ctypes.ResultBroadcastTxCommit, error)
	ABCIQuery(ctx context.Context, path string, data bytes.HexBytes) (*ctypes.ResultABCIQuery, error)
}

// Dial connects to a CometBFT RPC endpoint such as http://127.0.0.1:26657.
func Dial(remote string) (Node, error) {
	c, err := rpchttp.New(remote)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", remote, err)
	}
	return c, nil
}

// TxError is a transaction rejected by CheckTx or FinalizeBlock.
type TxError struct {
	Stage     string
	Codespace string
	Code      uint32
	Log       string
}

func (e *TxError) Error() string {
	return fmt.Sprintf("%s failed: codespace=%s code=%d: %s", e.Stage, e.Codespace, e.Code, e.Log)
}

// QueryError is a non-zero query response.
type QueryError struct {
	Path      string
	Codespace string
	Code      uint32
	Log       string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: codespace=%s code=%d: %s", e.Path, e.Codespace, e.Code, e.Log)
}

// Result is a committed transaction.
type Result struct {
	Hash   string
	Height int64
	Data   []byte
	Events []abci.Event
}

// Client signs with a single key and tracks its nonce.
type Client struct {
	node Node
	key  *ecdsa.PrivateKey
	addr common.Address

	mu     sync.Mutex
	nonce  uint64
	synced bool
}

func New(node Node, key *ecdsa.PrivateKey) *Client {
	return &Client{node: node, key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

func (c *Client) Address() common.Address {
	return c.addr
}

// CreateSession opens a join session and returns its id.
func (c *Client) CreateSession(ctx context.Context, commitment common.Hash) (common.Hash, error) {
	res, err := c.Submit(ctx, codec.TypeCreate, codec.CreateTx{Commitment: commitment})
	if err != nil {
		return common.Hash{}, err
	}
	return sessionIDFromData(res.Data)
}

// CreateRoster opens a fixed-membership session and returns its id.
func (c *Client) CreateRoster(ctx context.Context, members []common.Address) (common.Hash, error) {
	res, err := c.Submit(ctx, codec.TypeCreateRoster, codec.CreateRosterTx{Members: members})
	if err != nil {
		return common.Hash{}, err
	}
	return sessionIDFromData(res.Data)
}

func (c *Client) Join(ctx context.Context, id, commitment common.Hash) (*Result, error) {
	return c.Submit(ctx, codec.TypeJoin, codec.JoinTx{SessionID: id, Commitment: commitment})
}

func (c *Client) Commit(ctx context.Context, id, commitment common.Hash) (*Result, error) {
	return c.Submit(ctx, codec.TypeCommit, codec.CommitTx{SessionID: id, Commitment: commitment})
}

func (c *Client) Reveal(ctx context.Context, id common.Hash, choice rps.Choice, blindingFactor common.Hash) (*Result, error) {
	return c.Submit(ctx, codec.TypeReveal, codec.RevealTx{SessionID: id, Choice: choice, BlindingFactor: blindingFactor})
}

// Submit signs value under the next nonce and waits for the block that
// includes it. The local nonce only advances when the tx executes.
func (c *Client) Submit(ctx context.Context, typ string, value any) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.synced {
		n, err := c.fetchNonce(ctx)
		if err != nil {
			return nil, err
		}
		c.nonce, c.synced = n, true
	}

	env, err := codec.NewTxEnvelope(typ, value, c.nonce+1)
	if err != nil {
		return nil, err
	}
	if err := codec.Sign(&env, c.key); err != nil {
		return nil, err
	}
	tx, err := env.Encode()
	if err != nil {
		return nil, err
	}

	out, err := c.node.BroadcastTxCommit(ctx, tx)
	if err != nil {
		// The tx may or may not have landed; resync before the next submit.
		c.synced = false
		return nil, fmt.Errorf("broadcast %s: %w", typ, err)
	}
	if out.CheckTx.Code != abci.CodeTypeOK {
		return nil, &TxError{Stage: "check", Codespace: out.CheckTx.Codespace, Code: out.CheckTx.Code, Log: out.CheckTx.Log}
	}
	if out.TxResult.Code != abci.CodeTypeOK {
		return nil, &TxError{Stage: "deliver", Codespace: out.TxResult.Codespace, Code: out.TxResult.Code, Log: out.TxResult.Log}
	}
	c.nonce++
	return &Result{
		Hash:   out.Hash.String(),
		Height: out.Height,
		Data:   out.TxResult.Data,
		Events: out.TxResult.Events,
	}, nil
}

func (c *Client) fetchNonce(ctx context.Context) (uint64, error) {
	var v struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := Query(ctx, c.node, "/nonce/"+c.addr.Hex(), &v); err != nil {
		return 0, err
	}
	return v.Nonce, nil
}

// Query runs an ABCI query and decodes the JSON value into out.
func Query(ctx context.Context, node Node, path string, out any) error {
	res, err := node.ABCIQuery(ctx, path, nil)
	if err != nil {
		return fmt.Errorf("query %s: %w", path, err)
	}
	r := res.Response
	if r.Code != abci.CodeTypeOK {
		return &QueryError{Path: path, Codespace: r.Codespace, Code: r.Code, Log: r.Log}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(r.Value, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Session fetches one session view.
func Session(ctx context.Context, node Node, id common.Hash) (rps.SessionView, error) {
	var v rps.SessionView
	err := Query(ctx, node, "/session/"+id.Hex(), &v)
	return v, err
}

func sessionIDFromData(data []byte) (common.Hash, error) {
	if len(data) != common.HashLength {
		return common.Hash{}, fmt.Errorf("unexpected tx data length %d", len(data))
	}
	return common.BytesToHash(data), nil
}
