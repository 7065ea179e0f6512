package handler

import (
	"context"

	"github.com/calehh/pvote/registry"
	"github.com/calehh/pvote/state"
	"github.com/calehh/pvote/tx"
	"github.com/calehh/pvote/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type CreateProposalTxHandler struct {
	logger cmtlog.Logger
}

func NewCreateProposalTxHandler(logger cmtlog.Logger) (h *CreateProposalTxHandler) {
	logger = logger.With("module", "createProposalTx")
	h = &CreateProposalTxHandler{
		logger: logger,
	}
	return
}

func (h *CreateProposalTxHandler) Check(ctx context.Context, st *state.State, sender string, btx *tx.Tx) (res *abcitypes.ResponseCheckTx, err error) {
	res = checkOn(ctx, st, sender, btx, h.handle)
	if res.Code != types.CodeOK {
		h.logger.Info("CheckTx CreateProposalTx fail", "sender", sender, "err", res.Log)
	}
	return
}

func (h *CreateProposalTxHandler) NewContext(ctx context.Context) {}

// handle writes the new id into Data; the event carries only name and quorum.
func (h *CreateProposalTxHandler) handle(ctx context.Context, st *state.State, sender string, btx *tx.Tx) (res *abcitypes.ExecTxResult, err error) {
	ptx, ok := btx.Tx.(*tx.CreateProposalTx)
	if !ok {
		return nil, ErrUnexpectedTxBody
	}
	id, event, err := registry.New(st, h.logger).Create(sender, ptx.Name, ptx.Description, ptx.Quorum)
	if err != nil {
		return nil, err
	}
	err = st.IncNonce(sender)
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{
		Data:   types.EncodeProposalID(id),
		Events: []abcitypes.Event{types.EncodeEventProposalCreated(event)},
	}
	return
}

func (h *CreateProposalTxHandler) Prepare(ctx context.Context, st *state.State, sender string, btx *tx.Tx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, sender, btx)
}

func (h *CreateProposalTxHandler) Process(ctx context.Context, st *state.State, sender string, btx *tx.Tx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, sender, btx)
}
