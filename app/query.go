package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/calehh/pvote/registry"
	"github.com/calehh/pvote/state"
	"github.com/calehh/pvote/tx/handler"
	"github.com/calehh/pvote/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

var ErrBadQueryData = errors.New("bad query data")

func (app *PVoteApp) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		res = &abcitypes.ResponseQuery{}
		res.Code = types.CodeUnknownPath
		res.Log = "unknown query path " + req.Path
		return
	}
	res, err = q.Query(ctx, req)
	return
}

type Querier interface {
	Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error)
}

// queryFunc runs fn against the last committed state and fills in the
// height and error code of the response.
func queryFunc(db *state.StateDB, logger cmtlog.Logger, fn func(st *state.State) ([]byte, error)) (res *abcitypes.ResponseQuery) {
	res = &abcitypes.ResponseQuery{}
	st, err := db.QueryState()
	if err != nil {
		logger.Error("load query state fail", "err", err)
		res.Code = types.CodeInternal
		res.Log = err.Error()
		return
	}
	res.Height = int64(st.Height())
	val, err := fn(st)
	if err != nil {
		res.Code = queryCode(err)
		res.Log = err.Error()
		return
	}
	res.Value = val
	return
}

func queryCode(err error) uint32 {
	if errors.Is(err, ErrBadQueryData) {
		return types.CodeInvalidTx
	}
	return handler.ErrorCode(err)
}

type ProposalsQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewProposalsQuerier(db *state.StateDB, logger cmtlog.Logger) (q *ProposalsQuerier) {
	q = &ProposalsQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *ProposalsQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = queryFunc(q.db, q.logger, func(st *state.State) ([]byte, error) {
		proposals, err := registry.New(st, q.logger).GetAll()
		if err != nil {
			return nil, err
		}
		return json.Marshal(proposals)
	})
	return
}

// ProposalQuerier expects the 8-byte big-endian proposal id as data.
type ProposalQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewProposalQuerier(db *state.StateDB, logger cmtlog.Logger) (q *ProposalQuerier) {
	q = &ProposalQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *ProposalQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = queryFunc(q.db, q.logger, func(st *state.State) ([]byte, error) {
		id, ok := types.DecodeProposalID(req.Data)
		if !ok {
			return nil, ErrBadQueryData
		}
		proposal, err := registry.New(st, q.logger).Get(id)
		if err != nil {
			return nil, err
		}
		return json.Marshal(proposal)
	})
	return
}

// VotedQuerier expects the proposal id followed by the voter address and
// answers "true" or "false".
type VotedQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewVotedQuerier(db *state.StateDB, logger cmtlog.Logger) (q *VotedQuerier) {
	q = &VotedQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *VotedQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = queryFunc(q.db, q.logger, func(st *state.State) ([]byte, error) {
		if len(req.Data) <= 8 {
			return nil, ErrBadQueryData
		}
		id, _ := types.DecodeProposalID(req.Data[:8])
		voter := string(req.Data[8:])
		voted, err := registry.New(st, q.logger).HasVoted(id, voter)
		if err != nil {
			return nil, err
		}
		return json.Marshal(voted)
	})
	return
}

// AccountQuerier expects a hex address as data.
type AccountQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewAccountQuerier(db *state.StateDB, logger cmtlog.Logger) (q *AccountQuerier) {
	q = &AccountQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *AccountQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = queryFunc(q.db, q.logger, func(st *state.State) ([]byte, error) {
		if !common.IsHexAddress(string(req.Data)) {
			return nil, ErrBadQueryData
		}
		addr := common.HexToAddress(string(req.Data)).Hex()
		a, err := st.FindAccount(addr)
		if err != nil {
			return nil, err
		}
		if a == nil {
			a = &state.Account{Address: addr}
		}
		return a.MarshalJSON()
	})
	return
}
