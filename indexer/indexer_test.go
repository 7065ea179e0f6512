package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/p2p"
	ctypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calehh/pvote/crypto"
	"github.com/calehh/pvote/tx"
	"github.com/calehh/pvote/types"
)

const testChainID = "pvote-test"

type fakeBlock struct {
	txs     [][]byte
	results []*abci.ExecTxResult
}

type fakeChain struct {
	appState []byte
	blocks   []fakeBlock
}

func (f *fakeChain) Genesis(ctx context.Context) (*ctypes.ResultGenesis, error) {
	return &ctypes.ResultGenesis{Genesis: &cmttypes.GenesisDoc{
		ChainID:     testChainID,
		GenesisTime: time.Unix(1700000000, 0),
		AppState:    f.appState,
	}}, nil
}

func (f *fakeChain) Status(ctx context.Context) (*ctypes.ResultStatus, error) {
	return &ctypes.ResultStatus{
		NodeInfo: p2p.DefaultNodeInfo{Network: testChainID},
		SyncInfo: ctypes.SyncInfo{LatestBlockHeight: int64(len(f.blocks))},
	}, nil
}

func (f *fakeChain) Block(ctx context.Context, height *int64) (*ctypes.ResultBlock, error) {
	b := f.blocks[*height-1]
	txs := make(cmttypes.Txs, len(b.txs))
	for i, t := range b.txs {
		txs[i] = cmttypes.Tx(t)
	}
	return &ctypes.ResultBlock{Block: &cmttypes.Block{Data: cmttypes.Data{Txs: txs}}}, nil
}

func (f *fakeChain) BlockResults(ctx context.Context, height *int64) (*ctypes.ResultBlockResults, error) {
	return &ctypes.ResultBlockResults{Height: *height, TxsResults: f.blocks[*height-1].results}, nil
}

func signed(t *testing.T, key *crypto.Key, btx *tx.Tx) []byte {
	t.Helper()
	require.NoError(t, btx.Sign(key, testChainID))
	dat, err := tx.MarshalTx(btx)
	require.NoError(t, err)
	return dat
}

func voted(id uint64, voter string, count uint64, status types.ProposalStatus) *abci.ExecTxResult {
	return &abci.ExecTxResult{
		Data: types.EncodeProposalID(id),
		Events: []abci.Event{types.EncodeEventProposalVoted(&types.EventProposalVoted{
			Proposal: id, Voter: voter, VoteCount: count, Status: status,
		})},
	}
}

type fixture struct {
	alice, bob, carol *crypto.Key
	chain             *fakeChain
	dbPath            string
}

func newFixture(t *testing.T) *fixture {
	keys := make([]*crypto.Key, 3)
	for i := range keys {
		k, err := crypto.GenerateKey()
		require.NoError(t, err)
		keys[i] = k
	}
	f := &fixture{alice: keys[0], bob: keys[1], carol: keys[2], dbPath: filepath.Join(t.TempDir(), "indexer.db")}
	f.chain = &fakeChain{blocks: []fakeBlock{
		{
			txs: [][]byte{signed(t, f.alice, tx.NewCreateProposalTx(0, "Proposal 1", "Here is a proposal", 2))},
			results: []*abci.ExecTxResult{{
				Data:   types.EncodeProposalID(0),
				Events: []abci.Event{types.EncodeEventProposalCreated(&types.EventProposalCreated{Name: "Proposal 1", Quorum: 2})},
			}},
		},
		{
			txs: [][]byte{
				signed(t, f.bob, tx.NewVoteTx(0, 0)),
				signed(t, f.bob, tx.NewVoteTx(1, 0)),
				signed(t, f.carol, tx.NewVoteTx(0, 0)),
			},
			results: []*abci.ExecTxResult{
				voted(0, f.bob.Address(), 1, types.ProposalStatusPending),
				{Code: types.CodeDuplicateVote, Log: "You've voted already"},
				voted(0, f.carol.Address(), 2, types.ProposalStatusAccepted),
			},
		},
	}}
	return f
}

func (f *fixture) indexer(t *testing.T) *ChainIndexer {
	db, err := OpenDB(f.dbPath)
	require.NoError(t, err)
	c, err := newChainIndexer(cmtlog.NewNopLogger(), db, f.chain, "", time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSyncIndexesEvents(t *testing.T) {
	f := newFixture(t)
	c := f.indexer(t)
	require.NoError(t, c.Sync(context.Background()))
	assert.Equal(t, int64(3), c.Height)

	p, err := c.getProposalById(0)
	require.NoError(t, err)
	assert.Equal(t, "Proposal 1", p.Name)
	assert.Equal(t, "Here is a proposal", p.Description)
	assert.Equal(t, uint64(2), p.Quorum)
	assert.Equal(t, uint64(2), p.VoteCount)
	assert.Equal(t, uint64(types.ProposalStatusAccepted), p.Status)
	assert.Equal(t, f.alice.Address(), p.ProposerAddress)
	assert.Equal(t, uint64(1), p.NewHeight)
	assert.Equal(t, uint64(2), p.AcceptHeight)

	votes, total, err := c.getVotesByProposal(0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	require.Len(t, votes, 2)
	assert.Equal(t, f.bob.Address(), votes[0].VoterAddress)
	assert.Equal(t, f.carol.Address(), votes[1].VoterAddress)
	assert.Equal(t, 2, votes[1].TxIndex)
}

func TestSyncResumesFromStoredHeight(t *testing.T) {
	f := newFixture(t)
	c := f.indexer(t)
	require.NoError(t, c.Sync(context.Background()))
	require.NoError(t, c.Close())

	again := f.indexer(t)
	assert.Equal(t, int64(3), again.Height)
	// nothing new to index, and no duplicate rows appear
	require.NoError(t, again.Sync(context.Background()))
	_, total, err := again.getVotesByProposal(0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
}

func TestService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	c := f.indexer(t)
	require.NoError(t, c.Sync(context.Background()))
	srv := NewService("", c).Handler()

	specs := map[string]struct {
		method   string
		path     string
		body     string
		expCode  int
		expTotal uint64
	}{
		"all proposals": {
			method: http.MethodPost, path: "/getProposals", body: `{}`,
			expCode: http.StatusOK, expTotal: 1,
		},
		"proposal zero by id": {
			method: http.MethodPost, path: "/getProposals", body: `{"proposalId":0}`,
			expCode: http.StatusOK, expTotal: 1,
		},
		"unknown proposal": {
			method: http.MethodPost, path: "/getProposals", body: `{"proposalId":9}`,
			expCode: http.StatusNotFound,
		},
		"accepted proposals": {
			method: http.MethodPost, path: "/getProposals", body: `{"status":2}`,
			expCode: http.StatusOK, expTotal: 1,
		},
		"pending proposals": {
			method: http.MethodPost, path: "/getProposals", body: `{"status":1}`,
			expCode: http.StatusOK, expTotal: 0,
		},
		"votes of proposal": {
			method: http.MethodPost, path: "/getVotes", body: `{"proposalId":0}`,
			expCode: http.StatusOK, expTotal: 2,
		},
		"votes of voter": {
			method: http.MethodPost, path: "/getVotes", body: `{"voter":"` + f.bob.Address() + `"}`,
			expCode: http.StatusOK, expTotal: 1,
		},
		"votes without filter": {
			method: http.MethodPost, path: "/getVotes", body: `{}`,
			expCode: http.StatusBadRequest,
		},
		"malformed body": {
			method: http.MethodPost, path: "/getProposals", body: `{`,
			expCode: http.StatusBadRequest,
		},
	}
	for msg, spec := range specs {
		t.Run(msg, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(spec.method, spec.path, bytes.NewBufferString(spec.body))
			req.Header.Set("Content-Type", "application/json")
			srv.ServeHTTP(w, req)
			require.Equal(t, spec.expCode, w.Code, w.Body.String())
			if spec.expCode != http.StatusOK {
				return
			}
			var got struct {
				Total uint64 `json:"total"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, spec.expTotal, got.Total)
		})
	}

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"height":2}`, w.Body.String())
}

func TestSyncSeedsGenesisProposals(t *testing.T) {
	f := newFixture(t)
	f.chain.appState = []byte(`{"proposals":[{"name":"Seeded","description":"from genesis","quorum":1}]}`)
	// the seeded proposal takes id 0, so the proposal created in block 1 is id 1
	f.chain.blocks = []fakeBlock{
		{
			txs: [][]byte{signed(t, f.bob, tx.NewVoteTx(0, 0))},
			results: []*abci.ExecTxResult{
				voted(0, f.bob.Address(), 1, types.ProposalStatusAccepted),
			},
		},
		{
			txs: [][]byte{signed(t, f.alice, tx.NewCreateProposalTx(0, "Proposal 2", "", 3))},
			results: []*abci.ExecTxResult{{
				Data:   types.EncodeProposalID(1),
				Events: []abci.Event{types.EncodeEventProposalCreated(&types.EventProposalCreated{Name: "Proposal 2", Quorum: 3})},
			}},
		},
	}
	c := f.indexer(t)
	require.NoError(t, c.Sync(context.Background()))
	assert.Equal(t, int64(3), c.Height)

	p, err := c.getProposalById(0)
	require.NoError(t, err)
	assert.Equal(t, "Seeded", p.Name)
	assert.Equal(t, "from genesis", p.Description)
	assert.Equal(t, types.GenesisProposer, p.ProposerAddress)
	assert.Equal(t, uint64(0), p.NewHeight)
	assert.Equal(t, uint64(1), p.VoteCount)
	assert.Equal(t, uint64(types.ProposalStatusAccepted), p.Status)
	assert.Equal(t, uint64(1), p.AcceptHeight)

	_, total, err := c.getProposals(0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)

	// a restarted indexer does not seed again over indexed votes
	require.NoError(t, c.Close())
	again := f.indexer(t)
	require.NoError(t, again.Sync(context.Background()))
	p, err = again.getProposalById(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.VoteCount)
}
