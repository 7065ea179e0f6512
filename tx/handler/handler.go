package handler

import (
	"context"

	"github.com/calehh/pvote/state"
	"github.com/calehh/pvote/tx"
	abcitypes "github.com/cometbft/cometbft/abci/types"
)

// TxHandler applies one tx type to a State. The sender has already been
// recovered and nonce-checked by the caller.
type TxHandler interface {
	Check(ctx context.Context, st *state.State, sender string, btx *tx.Tx) (res *abcitypes.ResponseCheckTx, err error)
	NewContext(ctx context.Context)
	Prepare(ctx context.Context, st *state.State, sender string, btx *tx.Tx) (res *abcitypes.ExecTxResult, err error)
	Process(ctx context.Context, st *state.State, sender string, btx *tx.Tx) (res *abcitypes.ExecTxResult, err error)
}

// checkOn dry-runs handle on a clone of st and reports the outcome as a
// CheckTx response.
func checkOn(ctx context.Context, st *state.State, sender string, btx *tx.Tx,
	handle func(context.Context, *state.State, string, *tx.Tx) (*abcitypes.ExecTxResult, error)) *abcitypes.ResponseCheckTx {
	res := &abcitypes.ResponseCheckTx{Code: 0}
	_, err := handle(ctx, st.Clone(), sender, btx)
	if err != nil {
		res.Code = ErrorCode(err)
		res.Log = err.Error()
	}
	return res
}
