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

type VoteTxHandler struct {
	logger cmtlog.Logger
}

func NewVoteTxHandler(logger cmtlog.Logger) (h *VoteTxHandler) {
	logger = logger.With("module", "voteTx")
	h = &VoteTxHandler{
		logger: logger,
	}
	return
}

func (h *VoteTxHandler) Check(ctx context.Context, st *state.State, sender string, btx *tx.Tx) (res *abcitypes.ResponseCheckTx, err error) {
	res = checkOn(ctx, st, sender, btx, h.handle)
	if res.Code != types.CodeOK {
		h.logger.Info("CheckTx VoteTx fail", "sender", sender, "err", res.Log)
	}
	return
}

func (h *VoteTxHandler) NewContext(ctx context.Context) {}

func (h *VoteTxHandler) handle(ctx context.Context, st *state.State, sender string, btx *tx.Tx) (res *abcitypes.ExecTxResult, err error) {
	vtx, ok := btx.Tx.(*tx.VoteTx)
	if !ok {
		return nil, ErrUnexpectedTxBody
	}
	event, err := registry.New(st, h.logger).Vote(sender, vtx.Proposal)
	if err != nil {
		return nil, err
	}
	err = st.IncNonce(sender)
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{
		Data:   types.EncodeProposalID(vtx.Proposal),
		Events: []abcitypes.Event{types.EncodeEventProposalVoted(event)},
	}
	return
}

func (h *VoteTxHandler) Prepare(ctx context.Context, st *state.State, sender string, btx *tx.Tx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, sender, btx)
}

func (h *VoteTxHandler) Process(ctx context.Context, st *state.State, sender string, btx *tx.Tx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, sender, btx)
}
