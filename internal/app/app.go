package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Cript/game-rps/internal/codec"
	"github.com/Cript/game-rps/internal/rps"
	"github.com/Cript/game-rps/internal/state"
	"github.com/Cript/game-rps/internal/store"
)

const (
	AppVersion uint64 = 1

	tracerName = "github.com/Cript/game-rps/internal/app"
)

type RPSApp struct {
	*abci.BaseApplication

	store  store.Store
	logger log.Logger
	tracer trace.Tracer

	mu       sync.Mutex
	st       *state.State
	reg      *rps.Registry
	lastHash []byte
}

// New loads the persisted state from s and rebuilds the session registry.
func New(s store.Store, params rps.Params, logger log.Logger) (*RPSApp, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	st, err := s.Load()
	if err != nil {
		return nil, err
	}
	reg, err := rps.NewRegistry(rps.WithParams(params))
	if err != nil {
		return nil, err
	}
	if err := reg.Restore(st.RPS); err != nil {
		return nil, fmt.Errorf("restore sessions: %w", err)
	}
	a := &RPSApp{
		BaseApplication: abci.NewBaseApplication(),
		store:           s,
		logger:          logger.With("module", "app"),
		tracer:          otel.Tracer(tracerName),
		st:              st,
		reg:             reg,
	}
	a.syncState()
	a.lastHash = a.st.AppHash()
	return a, nil
}

// Registry exposes the session registry for in-process readers.
func (a *RPSApp) Registry() *rps.Registry {
	return a.reg
}

func (a *RPSApp) Info(_ context.Context, _ *abci.InfoRequest) (*abci.InfoResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &abci.InfoResponse{
		Data:             "RPS (v1)",
		Version:          "v1",
		AppVersion:       AppVersion,
		LastBlockHeight:  a.st.Height,
		LastBlockAppHash: a.lastHash,
	}, nil
}

func (a *RPSApp) CheckTx(_ context.Context, req *abci.CheckTxRequest) (*abci.CheckTxResponse, error) {
	env, sender, err := a.authenticate(req.Tx)
	if err == nil {
		a.mu.Lock()
		err = a.checkNonce(sender, env.Nonce)
		a.mu.Unlock()
	}
	if err != nil {
		codespace, code, logMsg := abciError(err)
		return &abci.CheckTxResponse{Codespace: codespace, Code: code, Log: logMsg}, nil
	}
	return &abci.CheckTxResponse{Code: abci.CodeTypeOK}, nil
}

func (a *RPSApp) InitChain(_ context.Context, _ *abci.InitChainRequest) (*abci.InitChainResponse, error) {
	// No genesis state: sessions only come from transactions.
	return &abci.InitChainResponse{}, nil
}

func (a *RPSApp) FinalizeBlock(ctx context.Context, req *abci.FinalizeBlockRequest) (*abci.FinalizeBlockResponse, error) {
	ctx, span := a.tracer.Start(ctx, "FinalizeBlock", trace.WithAttributes(
		attribute.Int64("height", req.Height),
		attribute.Int("txs", len(req.Txs)),
	))
	defer span.End()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.st.Height = req.Height
	// Session ids mix in the block hash so they cannot be predicted before
	// the block is proposed.
	a.reg.Reseed(req.Hash)

	txResults := make([]*abci.ExecTxResult, 0, len(req.Txs))
	for _, txBytes := range req.Txs {
		res := a.deliverTx(ctx, txBytes, req.Height)
		txResults = append(txResults, res)
	}

	a.syncState()
	a.lastHash = a.st.AppHash()

	return &abci.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   a.lastHash,
	}, nil
}

func (a *RPSApp) Commit(_ context.Context, _ *abci.CommitRequest) (*abci.CommitResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.store.Save(a.st); err != nil {
		// CometBFT expects Commit to not crash; return error so node halts loudly.
		a.logger.Error("failed to persist state", "height", a.st.Height, "err", err)
		return nil, err
	}
	a.logger.Info("committed state", "height", a.st.Height, "appHash", hex.EncodeToString(a.lastHash))
	return &abci.CommitResponse{}, nil
}

// Close releases the underlying store.
func (a *RPSApp) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.Close()
}

// syncState copies the registry into the persisted state. Callers hold a.mu.
func (a *RPSApp) syncState() {
	a.st.RPS = a.reg.Snapshot()
}

func (a *RPSApp) authenticate(txBytes []byte) (codec.TxEnvelope, common.Address, error) {
	env, err := codec.DecodeTxEnvelope(txBytes)
	if err != nil {
		return codec.TxEnvelope{}, common.Address{}, ErrTxDecode.Wrap(err.Error())
	}
	sender, err := codec.Sender(env)
	if err != nil {
		return codec.TxEnvelope{}, common.Address{}, ErrUnauthorized.Wrap(err.Error())
	}
	return env, sender, nil
}

func (a *RPSApp) checkNonce(sender common.Address, nonce uint64) error {
	if err := a.st.CheckNonce(sender, nonce); err != nil {
		return ErrStaleNonce.Wrap(err.Error())
	}
	return nil
}
