package app

import (
	"context"
	"fmt"

	"github.com/calehh/pvote/config"
	"github.com/calehh/pvote/registry"
	"github.com/calehh/pvote/state"
	"github.com/calehh/pvote/tx"
	"github.com/calehh/pvote/tx/handler"
	"github.com/calehh/pvote/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

type finalizeBlock struct {
	Height uint64
	Hash   common.Hash
}

func (b *finalizeBlock) Set(blk *abcitypes.RequestFinalizeBlock) {
	b.Height = uint64(blk.Height)
	b.Hash = common.BytesToHash(blk.Hash)
}

var _ abcitypes.Application = &PVoteApp{}

type PVoteApp struct {
	cfg     *config.AppConfig
	logger  cmtlog.Logger
	metrics *Metrics

	db       *state.StateDB
	lastBlk  finalizeBlock
	txHdlrs  map[tx.TxType]handler.TxHandler
	queriers map[string]Querier

	st *state.State
}

func NewPVoteApp(cfg *config.AppConfig, logger cmtlog.Logger, metrics *Metrics) (app *PVoteApp, err error) {
	db, err := state.NewStateDB(cfg.DataDir(), logger)
	if err != nil {
		return nil, err
	}
	return newPVoteApp(cfg, db, logger, metrics), nil
}

func newPVoteApp(cfg *config.AppConfig, db *state.StateDB, logger cmtlog.Logger, metrics *Metrics) *PVoteApp {
	if metrics == nil {
		metrics = NopMetrics()
	}
	app := &PVoteApp{
		cfg:      cfg,
		logger:   logger.With("module", "app"),
		metrics:  metrics,
		db:       db,
		txHdlrs:  make(map[tx.TxType]handler.TxHandler),
		queriers: make(map[string]Querier),
	}
	app.registerTxHandler()
	app.registerQuerier()
	return app
}

func (app *PVoteApp) Stop() {
	err := app.db.Close()
	if err != nil {
		app.logger.Error("close db fail", "err", err)
	}
	app.logger.Info("pvote app stopped")
}

func (app *PVoteApp) registerTxHandler() {
	app.txHdlrs = map[tx.TxType]handler.TxHandler{
		tx.TxTypeCreateProposal: handler.NewCreateProposalTxHandler(app.logger),
		tx.TxTypeVote:           handler.NewVoteTxHandler(app.logger),
	}
}

func (app *PVoteApp) registerQuerier() {
	app.queriers["/proposals/"] = NewProposalsQuerier(app.db, app.logger)
	app.queriers["/proposal/"] = NewProposalQuerier(app.db, app.logger)
	app.queriers["/voted/"] = NewVotedQuerier(app.db, app.logger)
	app.queriers["/accounts/"] = NewAccountQuerier(app.db, app.logger)
}

// InitChain seeds the proposals listed in the genesis app_state.
func (app *PVoteApp) InitChain(_ context.Context, chain *abcitypes.RequestInitChain) (res *abcitypes.ResponseInitChain, err error) {
	gs, err := types.ParseGenesisState(chain.AppStateBytes)
	if err != nil {
		app.logger.Error("InitChain parse app state fail", "err", err)
		return nil, err
	}
	st := app.db.NewState()
	st.SetChainId(chain.ChainId)
	st.SetManifest(fmt.Sprintf("%s/v%d", types.ModuleName, types.AppVersion))
	r := registry.New(st, app.logger)
	for _, p := range gs.Proposals {
		_, _, err = r.Create(types.GenesisProposer, p.Name, p.Description, p.Quorum)
		if err != nil {
			app.logger.Error("InitChain seed proposal fail", "name", p.Name, "err", err)
			return nil, err
		}
	}
	var h common.Hash
	_, err = st.Update()
	if err != nil {
		app.logger.Error("InitChain update state fail", "err", err)
		return nil, err
	}
	h, err = app.db.SetState(st)
	if err != nil {
		app.logger.Error("InitChain apply state fail", "err", err)
		return nil, err
	}
	app.logger.Info("InitChain", "chainId", chain.ChainId, "proposals", len(gs.Proposals))
	return &abcitypes.ResponseInitChain{
		AppHash: h.Bytes(),
	}, nil
}

func (app *PVoteApp) Info(ctx context.Context, info *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	header := app.db.Header()
	return &abcitypes.ResponseInfo{
		Data:             types.ModuleName,
		AppVersion:       types.AppVersion,
		LastBlockHeight:  int64(header.Height),
		LastBlockAppHash: header.Hash,
	}, nil
}

func (app *PVoteApp) ExtendVote(_ context.Context, extend *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (app *PVoteApp) VerifyVoteExtension(_ context.Context, verify *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

func (app *PVoteApp) ApplySnapshotChunk(context.Context, *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{}, nil
}

func (app *PVoteApp) ListSnapshots(context.Context, *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (app *PVoteApp) LoadSnapshotChunk(context.Context, *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (app *PVoteApp) OfferSnapshot(context.Context, *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{}, nil
}
