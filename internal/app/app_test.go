package app

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"testing"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/Cript/game-rps/internal/codec"
	"github.com/Cript/game-rps/internal/rps"
	"github.com/Cript/game-rps/internal/store"
)

type testKey struct {
	priv  *ecdsa.PrivateKey
	addr  common.Address
	nonce uint64
}

func newKey(t *testing.T) *testKey {
	t.Helper()
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &testKey{priv: priv, addr: crypto.PubkeyToAddress(priv.PublicKey)}
}

// txBytes signs value under k's next nonce.
func txBytes(t *testing.T, k *testKey, typ string, value any) []byte {
	t.Helper()
	k.nonce++
	return signedTx(t, k, typ, value, k.nonce)
}

func signedTx(t *testing.T, k *testKey, typ string, value any, nonce uint64) []byte {
	t.Helper()
	env, err := codec.NewTxEnvelope(typ, value, nonce)
	require.NoError(t, err)
	require.NoError(t, codec.Sign(&env, k.priv))
	b, err := env.Encode()
	require.NoError(t, err)
	return b
}

func findEvent(events []abci.Event, typ string) *abci.Event {
	for i := range events {
		if events[i].Type == typ {
			return &events[i]
		}
	}
	return nil
}

func attr(ev *abci.Event, key string) string {
	if ev == nil {
		return ""
	}
	for _, a := range ev.Attributes {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

func newTestApp(t *testing.T) *RPSApp {
	t.Helper()
	s, err := store.Open(store.BackendMemDB, t.TempDir())
	require.NoError(t, err)
	a, err := New(s, rps.DefaultParams(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func deliver(a *RPSApp, tx []byte, height int64) *abci.ExecTxResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deliverTx(context.Background(), tx, height)
}

func mustOk(t *testing.T, res *abci.ExecTxResult) *abci.ExecTxResult {
	t.Helper()
	if res.Code != abci.CodeTypeOK {
		t.Fatalf("expected ok, got codespace=%s code=%d log=%q", res.Codespace, res.Code, res.Log)
	}
	return res
}

func requireCode(t *testing.T, res *abci.ExecTxResult, codespace string, code uint32) {
	t.Helper()
	require.Equal(t, codespace, res.Codespace, res.Log)
	require.Equal(t, code, res.Code, res.Log)
}

func blinding(b byte) common.Hash {
	var h common.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

// createGame has alice open a capacity-2 session with rock.
func createGame(t *testing.T, a *RPSApp, alice *testKey) common.Hash {
	t.Helper()
	res := mustOk(t, deliver(a, txBytes(t, alice, codec.TypeCreate, codec.CreateTx{
		Commitment: rps.ComputeCommitment(alice.addr, rps.ChoiceRock, blinding(1)),
	}), 1))
	require.Len(t, res.Data, common.HashLength)
	return common.BytesToHash(res.Data)
}

func TestJoinSessionRevealFlow(t *testing.T) {
	a := newTestApp(t)
	alice, bob := newKey(t), newKey(t)

	createRes := mustOk(t, deliver(a, txBytes(t, alice, codec.TypeCreate, codec.CreateTx{
		Commitment: rps.ComputeCommitment(alice.addr, rps.ChoiceRock, blinding(1)),
	}), 1))
	id := common.BytesToHash(createRes.Data)
	ev := findEvent(createRes.Events, EventSessionCreated)
	require.NotNil(t, ev)
	require.Equal(t, id.Hex(), attr(ev, "sessionId"))
	require.Equal(t, alice.addr.Hex(), attr(ev, "creator"))
	require.Equal(t, "1", attr(ev, "seq"))

	joinRes := mustOk(t, deliver(a, txBytes(t, bob, codec.TypeJoin, codec.JoinTx{
		SessionID:  id,
		Commitment: rps.ComputeCommitment(bob.addr, rps.ChoicePaper, blinding(2)),
	}), 1))
	ev = findEvent(joinRes.Events, EventSessionJoined)
	require.NotNil(t, ev)
	require.Equal(t, bob.addr.Hex(), attr(ev, "participant"))
	require.Equal(t, "2", attr(ev, "seq"))

	revealRes := mustOk(t, deliver(a, txBytes(t, bob, codec.TypeReveal, codec.RevealTx{
		SessionID: id, Choice: rps.ChoicePaper, BlindingFactor: blinding(2),
	}), 2))
	ev = findEvent(revealRes.Events, EventChoiceRevealed)
	require.NotNil(t, ev)
	require.Equal(t, "paper", attr(ev, "choice"))

	// Second reveal by the same participant.
	res := deliver(a, txBytes(t, bob, codec.TypeReveal, codec.RevealTx{
		SessionID: id, Choice: rps.ChoicePaper, BlindingFactor: blinding(2),
	}), 2)
	requireCode(t, res, rps.Codespace, 9)

	mustOk(t, deliver(a, txBytes(t, alice, codec.TypeReveal, codec.RevealTx{
		SessionID: id, Choice: rps.ChoiceRock, BlindingFactor: blinding(1),
	}), 2))

	view, err := a.Registry().GetSession(id)
	require.NoError(t, err)
	require.True(t, view.Revealed)
	require.Equal(t, []rps.Choice{rps.ChoiceRock, rps.ChoicePaper}, view.RevealedChoices)
}

func TestRosterSessionFlow(t *testing.T) {
	a := newTestApp(t)
	alice, bob, carol := newKey(t), newKey(t), newKey(t)

	res := mustOk(t, deliver(a, txBytes(t, alice, codec.TypeCreateRoster, codec.CreateRosterTx{
		Members: []common.Address{alice.addr, bob.addr, carol.addr},
	}), 1))
	id := common.BytesToHash(res.Data)
	require.Contains(t, attr(findEvent(res.Events, EventSessionCreated), "members"), carol.addr.Hex())

	// Reveal before everyone committed.
	mustOk(t, deliver(a, txBytes(t, alice, codec.TypeCommit, codec.CommitTx{
		SessionID: id, Commitment: rps.ComputeCommitment(alice.addr, rps.ChoiceScissors, blinding(7)),
	}), 1))
	res = deliver(a, txBytes(t, alice, codec.TypeReveal, codec.RevealTx{
		SessionID: id, Choice: rps.ChoiceScissors, BlindingFactor: blinding(7),
	}), 1)
	requireCode(t, res, rps.Codespace, 7)

	// Outsiders cannot commit.
	outsider := newKey(t)
	res = deliver(a, txBytes(t, outsider, codec.TypeCommit, codec.CommitTx{
		SessionID: id, Commitment: blinding(9),
	}), 1)
	requireCode(t, res, rps.Codespace, 4)

	for _, k := range []*testKey{bob, carol} {
		res = mustOk(t, deliver(a, txBytes(t, k, codec.TypeCommit, codec.CommitTx{
			SessionID: id, Commitment: rps.ComputeCommitment(k.addr, rps.ChoiceRock, blinding(3)),
		}), 1))
		require.NotNil(t, findEvent(res.Events, EventCommitAdded))
	}

	mustOk(t, deliver(a, txBytes(t, alice, codec.TypeReveal, codec.RevealTx{
		SessionID: id, Choice: rps.ChoiceScissors, BlindingFactor: blinding(7),
	}), 2))
}

func TestJoinErrors(t *testing.T) {
	a := newTestApp(t)
	alice, bob, carol := newKey(t), newKey(t), newKey(t)
	id := createGame(t, a, alice)

	res := deliver(a, txBytes(t, bob, codec.TypeJoin, codec.JoinTx{SessionID: common.Hash{0x42}, Commitment: blinding(2)}), 1)
	requireCode(t, res, rps.Codespace, 3)

	res = deliver(a, txBytes(t, alice, codec.TypeJoin, codec.JoinTx{SessionID: id, Commitment: blinding(2)}), 1)
	requireCode(t, res, rps.Codespace, 5)

	mustOk(t, deliver(a, txBytes(t, bob, codec.TypeJoin, codec.JoinTx{SessionID: id, Commitment: blinding(2)}), 1))

	res = deliver(a, txBytes(t, carol, codec.TypeJoin, codec.JoinTx{SessionID: id, Commitment: blinding(3)}), 1)
	requireCode(t, res, rps.Codespace, 6)
}

func TestRevealMismatchRejected(t *testing.T) {
	a := newTestApp(t)
	alice, bob := newKey(t), newKey(t)
	id := createGame(t, a, alice)
	mustOk(t, deliver(a, txBytes(t, bob, codec.TypeJoin, codec.JoinTx{
		SessionID: id, Commitment: rps.ComputeCommitment(bob.addr, rps.ChoicePaper, blinding(2)),
	}), 1))

	// Claiming a different choice than the committed one.
	res := deliver(a, txBytes(t, alice, codec.TypeReveal, codec.RevealTx{
		SessionID: id, Choice: rps.ChoicePaper, BlindingFactor: blinding(1),
	}), 1)
	requireCode(t, res, rps.Codespace, 8)

	view, err := a.Registry().GetSession(id)
	require.NoError(t, err)
	require.Equal(t, rps.ChoiceNone, view.RevealedChoices[0])
}

func TestReplayAndStaleNonce(t *testing.T) {
	a := newTestApp(t)
	alice := newKey(t)

	tx := txBytes(t, alice, codec.TypeCreate, codec.CreateTx{Commitment: blinding(1)})
	mustOk(t, deliver(a, tx, 1))

	res := deliver(a, tx, 1)
	requireCode(t, res, TxCodespace, 4)

	// Nonces only need to increase, gaps are allowed.
	mustOk(t, deliver(a, signedTx(t, alice, codec.TypeCreate, codec.CreateTx{Commitment: blinding(1)}, 10), 1))
	res = deliver(a, signedTx(t, alice, codec.TypeCreate, codec.CreateTx{Commitment: blinding(1)}, 5), 1)
	requireCode(t, res, TxCodespace, 4)
}

func TestFailedTxLeavesStateUntouched(t *testing.T) {
	a := newTestApp(t)
	alice, bob := newKey(t), newKey(t)
	id := createGame(t, a, alice)

	a.mu.Lock()
	a.syncState()
	before := a.st.AppHash()
	a.mu.Unlock()

	// Join with a zero commitment fails; bob's nonce must stay unused.
	res := deliver(a, txBytes(t, bob, codec.TypeJoin, codec.JoinTx{SessionID: id}), 1)
	requireCode(t, res, rps.Codespace, 2)
	require.Empty(t, res.Events)

	a.mu.Lock()
	a.syncState()
	after := a.st.AppHash()
	a.mu.Unlock()
	require.Equal(t, before, after)

	// The same nonce is still usable.
	mustOk(t, deliver(a, signedTx(t, bob, codec.TypeJoin, codec.JoinTx{SessionID: id, Commitment: blinding(2)}, bob.nonce), 1))
}

func TestEnvelopeErrors(t *testing.T) {
	a := newTestApp(t)
	alice := newKey(t)

	res := deliver(a, []byte("not json"), 1)
	requireCode(t, res, TxCodespace, 2)

	env, err := codec.NewTxEnvelope(codec.TypeCreate, codec.CreateTx{Commitment: blinding(1)}, 1)
	require.NoError(t, err)
	unsigned, err := env.Encode()
	require.NoError(t, err)
	res = deliver(a, unsigned, 1)
	requireCode(t, res, TxCodespace, 3)

	res = deliver(a, txBytes(t, alice, "rps/forfeit", map[string]any{}), 1)
	requireCode(t, res, TxCodespace, 5)

	res = deliver(a, txBytes(t, alice, codec.TypeReveal, map[string]any{"choice": "lizard"}), 1)
	requireCode(t, res, TxCodespace, 2)
}

func TestCheckTx(t *testing.T) {
	a := newTestApp(t)
	alice := newKey(t)
	tx := txBytes(t, alice, codec.TypeCreate, codec.CreateTx{Commitment: blinding(1)})

	res, err := a.CheckTx(context.Background(), &abci.CheckTxRequest{Tx: tx})
	require.NoError(t, err)
	require.Equal(t, abci.CodeTypeOK, res.Code)

	mustOk(t, deliver(a, tx, 1))

	res, err = a.CheckTx(context.Background(), &abci.CheckTxRequest{Tx: tx})
	require.NoError(t, err)
	require.Equal(t, TxCodespace, res.Codespace)
	require.Equal(t, uint32(4), res.Code)
}

func TestQueries(t *testing.T) {
	a := newTestApp(t)
	alice, bob := newKey(t), newKey(t)
	id := createGame(t, a, alice)
	mustOk(t, deliver(a, txBytes(t, bob, codec.TypeJoin, codec.JoinTx{SessionID: id, Commitment: blinding(2)}), 1))

	query := func(path string) *abci.QueryResponse {
		t.Helper()
		res, err := a.Query(context.Background(), &abci.QueryRequest{Path: path})
		require.NoError(t, err)
		return res
	}

	res := query("/session/" + id.Hex())
	require.Equal(t, abci.CodeTypeOK, res.Code, res.Log)
	var view rps.SessionView
	require.NoError(t, json.Unmarshal(res.Value, &view))
	require.Equal(t, []common.Address{alice.addr, bob.addr}, view.Participants)
	require.True(t, view.Complete)
	require.False(t, view.Revealed)

	res = query("/sessions")
	var ids []common.Hash
	require.NoError(t, json.Unmarshal(res.Value, &ids))
	require.Equal(t, []common.Hash{id}, ids)

	res = query("/events/2")
	var page EventsPage
	require.NoError(t, json.Unmarshal(res.Value, &page))
	require.Len(t, page.Events, 1)
	require.Equal(t, rps.NotificationJoin, page.Events[0].Kind)
	require.Equal(t, uint64(3), page.Next)

	res = query("/nonce/" + alice.addr.Hex())
	var nonce NonceView
	require.NoError(t, json.Unmarshal(res.Value, &nonce))
	require.Equal(t, uint64(1), nonce.Nonce)

	res = query("/params")
	var params rps.Params
	require.NoError(t, json.Unmarshal(res.Value, &params))
	require.Equal(t, rps.DefaultParams(), params)

	res = query("/session/" + common.Hash{0x01}.Hex())
	require.Equal(t, rps.Codespace, res.Codespace)
	require.Equal(t, uint32(3), res.Code)

	res = query("/session/zz")
	require.Equal(t, uint32(2), res.Code)

	res = query("/tables")
	require.Equal(t, TxCodespace, res.Codespace)
	require.Equal(t, uint32(6), res.Code)
}

func TestFinalizeCommitAndReload(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(store.BackendBolt, dir)
	require.NoError(t, err)
	a, err := New(s, rps.DefaultParams(), nil)
	require.NoError(t, err)

	alice, bob := newKey(t), newKey(t)
	fin, err := a.FinalizeBlock(context.Background(), &abci.FinalizeBlockRequest{
		Height: 1,
		Hash:   []byte("block-1"),
		Txs: [][]byte{
			txBytes(t, alice, codec.TypeCreate, codec.CreateTx{
				Commitment: rps.ComputeCommitment(alice.addr, rps.ChoiceRock, blinding(1)),
			}),
		},
	})
	require.NoError(t, err)
	require.Len(t, fin.TxResults, 1)
	mustOk(t, fin.TxResults[0])
	id := common.BytesToHash(fin.TxResults[0].Data)

	fin2, err := a.FinalizeBlock(context.Background(), &abci.FinalizeBlockRequest{
		Height: 2,
		Hash:   []byte("block-2"),
		Txs: [][]byte{
			txBytes(t, bob, codec.TypeJoin, codec.JoinTx{
				SessionID: id, Commitment: rps.ComputeCommitment(bob.addr, rps.ChoicePaper, blinding(2)),
			}),
		},
	})
	require.NoError(t, err)
	mustOk(t, fin2.TxResults[0])
	require.NotEqual(t, fin.AppHash, fin2.AppHash)

	_, err = a.Commit(context.Background(), &abci.CommitRequest{})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	s, err = store.Open(store.BackendBolt, dir)
	require.NoError(t, err)
	reopened, err := New(s, rps.DefaultParams(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	info, err := reopened.Info(context.Background(), &abci.InfoRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(2), info.LastBlockHeight)
	require.Equal(t, fin2.AppHash, info.LastBlockAppHash)

	view, err := reopened.Registry().GetSession(id)
	require.NoError(t, err)
	require.True(t, view.Complete)
	require.Equal(t, uint64(2), reopened.Registry().LastSequence())

	// Nonces survive the restart.
	res := deliver(reopened, signedTx(t, bob, codec.TypeReveal, codec.RevealTx{
		SessionID: id, Choice: rps.ChoicePaper, BlindingFactor: blinding(2),
	}, bob.nonce), 3)
	requireCode(t, res, TxCodespace, 4)
}

func TestSessionIDsDependOnBlockHash(t *testing.T) {
	run := func(hash []byte) common.Hash {
		a := newTestApp(t)
		alice := &testKey{}
		priv, err := crypto.HexToECDSA("4c0883a69102937d6231471b4ecf2e49c7a4c7c0c8f3c4d0d3e4f5a6b7c8d9e0")
		require.NoError(t, err)
		alice.priv, alice.addr = priv, crypto.PubkeyToAddress(priv.PublicKey)
		fin, err := a.FinalizeBlock(context.Background(), &abci.FinalizeBlockRequest{
			Height: 1,
			Hash:   hash,
			Txs:    [][]byte{txBytes(t, alice, codec.TypeCreate, codec.CreateTx{Commitment: blinding(1)})},
		})
		require.NoError(t, err)
		return common.BytesToHash(mustOk(t, fin.TxResults[0]).Data)
	}

	require.Equal(t, run([]byte("a")), run([]byte("a")))
	require.NotEqual(t, run([]byte("a")), run([]byte("b")))
}
