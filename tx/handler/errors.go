package handler

import (
	"errors"

	"github.com/calehh/pvote/registry"
	"github.com/calehh/pvote/state"
	"github.com/calehh/pvote/tx"
	"github.com/calehh/pvote/types"
)

var ErrUnexpectedTxBody = errors.New("unexpected tx body")

// ErrorCode maps an execution error onto its ABCI result code.
func ErrorCode(err error) uint32 {
	switch {
	case err == nil:
		return types.CodeOK
	case errors.Is(err, registry.ErrDuplicateVote):
		return types.CodeDuplicateVote
	case errors.Is(err, registry.ErrNotFound):
		return types.CodeNotFound
	case errors.Is(err, registry.ErrInvalidQuorum):
		return types.CodeInvalidQuorum
	case errors.Is(err, state.ErrTxNonceInvalid):
		return types.CodeNonceInvalid
	case errors.Is(err, state.ErrTxSigInvalid), errors.Is(err, tx.ErrMissingSignature):
		return types.CodeSigInvalid
	case errors.Is(err, tx.ErrInvalidTx),
		errors.Is(err, tx.ErrUnsupportedTxType),
		errors.Is(err, tx.ErrUnsupportedTxVersion),
		errors.Is(err, tx.ErrTxTooLarge),
		errors.Is(err, registry.ErrInvalidActor),
		errors.Is(err, ErrUnexpectedTxBody):
		return types.CodeInvalidTx
	default:
		return types.CodeInternal
	}
}
