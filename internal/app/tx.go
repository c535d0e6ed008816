package app

import (
	"context"
	"encoding/json"

	abci "github.com/cometbft/cometbft/abci/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Cript/game-rps/internal/codec"
)

// deliverTx executes one transaction. Callers hold a.mu.
//
// The registry checks every precondition before mutating, and the sender's
// nonce is only consumed on success, so a failed tx leaves the state (and
// the app hash) exactly as it was.
func (a *RPSApp) deliverTx(ctx context.Context, txBytes []byte, height int64) *abci.ExecTxResult {
	_, span := a.tracer.Start(ctx, "deliverTx")
	defer span.End()

	res := a.execTx(txBytes)
	span.SetAttributes(attribute.Int64("code", int64(res.Code)))
	if res.Code != abci.CodeTypeOK {
		span.SetStatus(codes.Error, res.Log)
		a.logger.Debug("tx rejected", "height", height, "codespace", res.Codespace, "code", res.Code, "log", res.Log)
	}
	return res
}

func (a *RPSApp) execTx(txBytes []byte) *abci.ExecTxResult {
	env, sender, err := a.authenticate(txBytes)
	if err != nil {
		return errResult(err)
	}
	if err := a.checkNonce(sender, env.Nonce); err != nil {
		return errResult(err)
	}

	mark := a.reg.LastSequence()
	var data []byte

	switch env.Type {
	case codec.TypeCreate:
		var msg codec.CreateTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult(ErrTxDecode.Wrap("bad rps/create value"))
		}
		id, err := a.reg.CreateSession(sender, msg.Commitment)
		if err != nil {
			return errResult(err)
		}
		data = id.Bytes()

	case codec.TypeCreateRoster:
		var msg codec.CreateRosterTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult(ErrTxDecode.Wrap("bad rps/create_roster value"))
		}
		id, err := a.reg.CreateRoster(sender, msg.Members)
		if err != nil {
			return errResult(err)
		}
		data = id.Bytes()

	case codec.TypeJoin:
		var msg codec.JoinTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult(ErrTxDecode.Wrap("bad rps/join value"))
		}
		if err := a.reg.Join(msg.SessionID, sender, msg.Commitment); err != nil {
			return errResult(err)
		}

	case codec.TypeCommit:
		var msg codec.CommitTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult(ErrTxDecode.Wrap("bad rps/commit value"))
		}
		if err := a.reg.Commit(msg.SessionID, sender, msg.Commitment); err != nil {
			return errResult(err)
		}

	case codec.TypeReveal:
		var msg codec.RevealTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult(ErrTxDecode.Wrap("bad rps/reveal value"))
		}
		if err := a.reg.Reveal(msg.SessionID, sender, msg.Choice, msg.BlindingFactor); err != nil {
			return errResult(err)
		}

	default:
		return errResult(ErrUnknownTxType.Wrap(env.Type))
	}

	a.st.AcceptNonce(sender, env.Nonce)

	notifs := a.reg.Notifications(mark+1, 0)
	for _, n := range notifs {
		a.logger.Info("session event",
			"kind", string(n.Kind),
			"sessionId", n.SessionID.Hex(),
			"participant", n.Participant.Hex(),
			"seq", n.Seq,
		)
	}
	return &abci.ExecTxResult{
		Code:   abci.CodeTypeOK,
		Data:   data,
		Events: notificationEvents(notifs),
	}
}

func errResult(err error) *abci.ExecTxResult {
	codespace, code, log := abciError(err)
	return &abci.ExecTxResult{Codespace: codespace, Code: code, Log: log}
}
