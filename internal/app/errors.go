package app

import (
	errorsmod "cosmossdk.io/errors"
)

// TxCodespace holds envelope-level failures that happen before a tx
// reaches the session registry.
const TxCodespace = "tx"

var (
	ErrTxDecode      = errorsmod.Register(TxCodespace, 2, "tx decode error")
	ErrUnauthorized  = errorsmod.Register(TxCodespace, 3, "unauthorized")
	ErrStaleNonce    = errorsmod.Register(TxCodespace, 4, "stale nonce")
	ErrUnknownTxType = errorsmod.Register(TxCodespace, 5, "unknown tx type")
	ErrUnknownQuery  = errorsmod.Register(TxCodespace, 6, "unknown query path")
)

// abciError maps err onto the codespace/code/log triple CometBFT reports.
func abciError(err error) (codespace string, code uint32, log string) {
	return errorsmod.ABCIInfo(err, false)
}
