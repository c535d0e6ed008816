package client

import (
	"context"
	"errors"
	"testing"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/cometbft/cometbft/libs/bytes"
	ctypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/Cript/game-rps/internal/app"
	"github.com/Cript/game-rps/internal/rps"
	"github.com/Cript/game-rps/internal/store"
)

// localNode runs every broadcast as its own block against an in-process app.
type localNode struct {
	app    *app.RPSApp
	height int64
	fail   error
}

func newLocalNode(t *testing.T) *localNode {
	t.Helper()
	s, err := store.Open(store.BackendMemDB, t.TempDir())
	require.NoError(t, err)
	a, err := app.New(s, rps.DefaultParams(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return &localNode{app: a}
}

func (n *localNode) BroadcastTxCommit(ctx context.Context, tx cmttypes.Tx) (*ctypes.ResultBroadcastTxCommit, error) {
	if n.fail != nil {
		return nil, n.fail
	}
	check, err := n.app.CheckTx(ctx, &abci.CheckTxRequest{Tx: tx})
	if err != nil {
		return nil, err
	}
	out := &ctypes.ResultBroadcastTxCommit{CheckTx: *check, Hash: tx.Hash()}
	if check.Code != abci.CodeTypeOK {
		return out, nil
	}
	n.height++
	fin, err := n.app.FinalizeBlock(ctx, &abci.FinalizeBlockRequest{
		Height: n.height,
		Hash:   tx.Hash(),
		Txs:    [][]byte{tx},
	})
	if err != nil {
		return nil, err
	}
	if _, err := n.app.Commit(ctx, &abci.CommitRequest{}); err != nil {
		return nil, err
	}
	out.TxResult = *fin.TxResults[0]
	out.Height = n.height
	return out, nil
}

func (n *localNode) ABCIQuery(ctx context.Context, path string, _ bytes.HexBytes) (*ctypes.ResultABCIQuery, error) {
	res, err := n.app.Query(ctx, &abci.QueryRequest{Path: path})
	if err != nil {
		return nil, err
	}
	return &ctypes.ResultABCIQuery{Response: *res}, nil
}

func newClient(t *testing.T, node Node) *Client {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return New(node, key)
}

func blinding(b byte) common.Hash {
	return common.BytesToHash([]byte{b, b, b, b})
}

func TestClient_FullGame(t *testing.T) {
	ctx := context.Background()
	node := newLocalNode(t)
	alice, bob := newClient(t, node), newClient(t, node)

	id, err := alice.CreateSession(ctx, rps.ComputeCommitment(alice.Address(), rps.ChoiceScissors, blinding(1)))
	require.NoError(t, err)

	_, err = bob.Join(ctx, id, rps.ComputeCommitment(bob.Address(), rps.ChoiceRock, blinding(2)))
	require.NoError(t, err)

	_, err = alice.Reveal(ctx, id, rps.ChoiceScissors, blinding(1))
	require.NoError(t, err)
	_, err = bob.Reveal(ctx, id, rps.ChoiceRock, blinding(2))
	require.NoError(t, err)

	view, err := Session(ctx, node, id)
	require.NoError(t, err)
	require.True(t, view.Revealed)
	require.Equal(t, []rps.Choice{rps.ChoiceScissors, rps.ChoiceRock}, view.RevealedChoices)
}

func TestClient_RejectedTxKeepsNonce(t *testing.T) {
	ctx := context.Background()
	node := newLocalNode(t)
	alice, bob := newClient(t, node), newClient(t, node)

	id, err := alice.CreateSession(ctx, rps.ComputeCommitment(alice.Address(), rps.ChoiceRock, blinding(1)))
	require.NoError(t, err)

	_, err = alice.Reveal(ctx, id, rps.ChoiceRock, blinding(1))
	var txErr *TxError
	require.ErrorAs(t, err, &txErr)
	require.Equal(t, "deliver", txErr.Stage)
	require.Equal(t, rps.Codespace, txErr.Codespace)
	require.Equal(t, uint32(7), txErr.Code)

	// The failed reveal did not burn a nonce, so the next tx still lands.
	_, err = bob.Join(ctx, id, rps.ComputeCommitment(bob.Address(), rps.ChoicePaper, blinding(2)))
	require.NoError(t, err)
	_, err = alice.Reveal(ctx, id, rps.ChoiceRock, blinding(1))
	require.NoError(t, err)
}

func TestClient_ResyncsNonceFromNode(t *testing.T) {
	ctx := context.Background()
	node := newLocalNode(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	first := New(node, key)
	_, err = first.CreateSession(ctx, blinding(9))
	require.NoError(t, err)

	// A second client for the same key picks up the committed nonce.
	second := New(node, key)
	_, err = second.CreateSession(ctx, blinding(9))
	require.NoError(t, err)

	var nonce struct {
		Nonce uint64 `json:"nonce"`
	}
	require.NoError(t, Query(ctx, node, "/nonce/"+first.Address().Hex(), &nonce))
	require.Equal(t, uint64(2), nonce.Nonce)
}

func TestClient_BroadcastFailureForcesResync(t *testing.T) {
	ctx := context.Background()
	node := newLocalNode(t)
	c := newClient(t, node)

	node.fail = errors.New("connection refused")
	_, err := c.CreateSession(ctx, blinding(1))
	require.ErrorContains(t, err, "connection refused")
	require.False(t, c.synced)

	node.fail = nil
	_, err = c.CreateSession(ctx, blinding(1))
	require.NoError(t, err)
}

func TestQuery_Errors(t *testing.T) {
	ctx := context.Background()
	node := newLocalNode(t)

	_, err := Session(ctx, node, common.Hash{0x01})
	var qErr *QueryError
	require.ErrorAs(t, err, &qErr)
	require.Equal(t, rps.Codespace, qErr.Codespace)
	require.Equal(t, uint32(3), qErr.Code)
}
