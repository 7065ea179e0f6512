package app

import (
	"context"
	"errors"

	"github.com/calehh/pvote/state"
	"github.com/calehh/pvote/tx"
	"github.com/calehh/pvote/tx/handler"
	"github.com/calehh/pvote/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
)

var (
	ErrUnexpectedTxProcess = errors.New("unexpected tx process")
	ErrNoPendingState      = errors.New("commit without finalized block")
)

func (app *PVoteApp) getState(height int64) (st *state.State) {
	st = app.db.NewState()
	st.SetHeight(uint64(height))
	return
}

// parseTx decodes txDat and verifies its signature and nonce against st.
func (app *PVoteApp) parseTx(st *state.State, txDat []byte, allowNonceGap bool) (btx *tx.Tx, sender string, err error) {
	btx, err = tx.UnmarshalTx(txDat)
	if err != nil {
		return
	}
	sender, err = st.Verify(btx, allowNonceGap)
	return
}

func failedResult(err error) *abcitypes.ExecTxResult {
	return &abcitypes.ExecTxResult{
		Code:      handler.ErrorCode(err),
		Codespace: types.ModuleName,
		Log:       err.Error(),
	}
}

func (app *PVoteApp) CheckTx(ctx context.Context, check *abcitypes.RequestCheckTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: 0}
	st, err := app.db.QueryState()
	if err != nil {
		app.logger.Error("load check state fail", "err", err)
		res.Code = types.CodeInternal
		res.Log = err.Error()
		return res, nil
	}
	btx, sender, err := app.parseTx(st, check.Tx, true)
	if err != nil {
		app.logger.Info("parse tx fail", "err", err)
		res.Code = handler.ErrorCode(err)
		res.Log = err.Error()
		return res, nil
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		app.logger.Error("unsupported tx", "type", btx.Type)
		res.Code = types.CodeInvalidTx
		res.Log = tx.ErrUnsupportedTxType.Error()
		return res, nil
	}
	res, err = h.Check(ctx, st, sender, btx)
	if err != nil {
		app.logger.Error("check tx fail", "err", err)
		res = &abcitypes.ResponseCheckTx{Code: handler.ErrorCode(err), Log: err.Error()}
		err = nil
	}
	res.Codespace = types.ModuleName
	return
}

// PrepareProposal keeps the txs that apply cleanly on top of each other, in
// mempool order and within MaxTxBytes.
func (app *PVoteApp) PrepareProposal(ctx context.Context, proposal *abcitypes.RequestPrepareProposal) (res *abcitypes.ResponsePrepareProposal, err error) {
	app.logger.Debug("PrepareProposal", "height", proposal.Height, "txs", len(proposal.Txs))
	st := app.getState(proposal.Height)
	for _, h := range app.txHdlrs {
		h.NewContext(ctx)
	}
	var size int64
	txs := make([][]byte, 0)
	for _, stx := range proposal.Txs {
		if proposal.MaxTxBytes > 0 && size+int64(len(stx)) > proposal.MaxTxBytes {
			break
		}
		stTmp := st.Clone()
		btx, sender, err := app.parseTx(stTmp, stx, false)
		if err != nil {
			app.logger.Info("drop tx, parse fail", "err", err)
			continue
		}
		h, ok := app.txHdlrs[btx.Type]
		if !ok {
			app.logger.Error("unsupported tx", "type", btx.Type)
			continue
		}
		_, err = h.Prepare(ctx, stTmp, sender, btx)
		if err != nil {
			app.logger.Info("drop tx, prepare fail", "type", btx.Type, "err", err)
			continue
		}
		st = stTmp
		size += int64(len(stx))
		txs = append(txs, stx)
	}
	return &abcitypes.ResponsePrepareProposal{Txs: txs}, nil
}

// ProcessProposal rejects blocks carrying txs that can't be decoded or
// whose signature can't be recovered. Execution failures are left to
// FinalizeBlock, which records them per tx.
func (app *PVoteApp) ProcessProposal(ctx context.Context, proposal *abcitypes.RequestProcessProposal) (res *abcitypes.ResponseProcessProposal, err error) {
	res = &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}
	chainId := app.db.Header().ChainId
	for _, stx := range proposal.Txs {
		btx, err := tx.UnmarshalTx(stx)
		if err != nil {
			app.logger.Error("reject proposal, parse fail", "height", proposal.Height, "err", err)
			return res, nil
		}
		if _, err = btx.Sender(chainId); err != nil {
			app.logger.Error("reject proposal, bad signature", "height", proposal.Height, "err", err)
			return res, nil
		}
	}
	res.Status = abcitypes.ResponseProcessProposal_ACCEPT
	return res, nil
}

// deliverTx runs one tx on a clone of st. The clone replaces st only when
// the tx succeeds.
func (app *PVoteApp) deliverTx(ctx context.Context, st *state.State, stx []byte) (*state.State, *abcitypes.ExecTxResult) {
	stTmp := st.Clone()
	btx, sender, err := app.parseTx(stTmp, stx, false)
	if err != nil {
		return st, failedResult(err)
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		return st, failedResult(tx.ErrUnsupportedTxType)
	}
	result, err := h.Process(ctx, stTmp, sender, btx)
	if err != nil {
		return st, failedResult(err)
	}
	if result == nil {
		return st, failedResult(ErrUnexpectedTxProcess)
	}
	app.observe(st, btx, result)
	return stTmp, result
}

func (app *PVoteApp) observe(before *state.State, btx *tx.Tx, result *abcitypes.ExecTxResult) {
	switch btx.Type {
	case tx.TxTypeCreateProposal:
		app.metrics.ProposalsCreated.Inc()
	case tx.TxTypeVote:
		app.metrics.VotesCounted.Inc()
		for _, ev := range result.Events {
			voted := types.DecodeEventProposalVoted(ev)
			if voted == nil || voted.Status != types.ProposalStatusAccepted {
				continue
			}
			prev, err := before.Proposal(voted.Proposal)
			if err == nil && prev != nil && prev.Status != types.ProposalStatusAccepted {
				app.metrics.ProposalsAccepted.Inc()
			}
		}
	}
}

func (app *PVoteApp) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	app.logger.Info("FinalizeBlock", "height", req.Height, "txs", len(req.Txs))
	app.lastBlk.Set(req)
	st := app.getState(req.Height)
	for _, h := range app.txHdlrs {
		h.NewContext(ctx)
	}
	res := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, stx := range req.Txs {
		st, res[i] = app.deliverTx(ctx, st, stx)
		if res[i].Code != types.CodeOK {
			app.logger.Info("tx failed", "height", req.Height, "index", i, "code", res[i].Code, "log", res[i].Log)
			app.metrics.rejected(res[i].Code)
		}
	}
	app.metrics.BlockTxs.Observe(float64(len(req.Txs)))
	h, err := st.Update()
	if err != nil {
		app.logger.Error("state update hash fail", "err", err)
		return nil, err
	}
	app.st = st
	return &abcitypes.ResponseFinalizeBlock{
		TxResults: res,
		AppHash:   h.Bytes(),
	}, nil
}

func (app *PVoteApp) Commit(ctx context.Context, commit *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	if app.st == nil {
		return nil, ErrNoPendingState
	}
	_, err := app.db.SetState(app.st)
	if err != nil {
		return nil, err
	}
	app.st = nil
	app.logger.Info("Commit", "height", app.lastBlk.Height, "block", app.lastBlk.Hash)
	return &abcitypes.ResponseCommit{}, nil
}
