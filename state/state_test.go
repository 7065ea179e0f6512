package state

import (
	"testing"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calehh/pvote/crypto"
	"github.com/calehh/pvote/registry"
	"github.com/calehh/pvote/registry/registrytesting"
	"github.com/calehh/pvote/tx"
	"github.com/calehh/pvote/types"
)

const testChainID = "test-chain"

func newTestDB(t *testing.T) *StateDB {
	t.Helper()
	db, err := NewMemStateDB(cmtlog.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// commit flushes st and saves a version, the way a block does.
func commit(t *testing.T, db *StateDB, st *State) {
	t.Helper()
	_, err := st.Update()
	require.NoError(t, err)
	_, err = db.SetState(st)
	require.NoError(t, err)
}

func TestStateConformance(t *testing.T) {
	registrytesting.RunStoreConformance(t, func(t *testing.T) registry.Store {
		return newTestDB(t).NewState()
	})
}

func TestStatePersistsAcrossVersions(t *testing.T) {
	db := newTestDB(t)
	st := db.NewState()
	st.SetChainId(testChainID)
	st.SetHeight(1)
	r := registry.New(st, nil)
	_, _, err := r.Create(registrytesting.Alice, "Proposal 1", "first", 2)
	require.NoError(t, err)
	_, err = r.Vote(registrytesting.Bob, 0)
	require.NoError(t, err)
	commit(t, db, st)

	next := db.NewState()
	next.SetHeight(2)
	r = registry.New(next, nil)
	_, err = r.Vote(registrytesting.Carol, 0)
	require.NoError(t, err)
	commit(t, db, next)

	q, err := db.QueryState()
	require.NoError(t, err)
	p, err := registry.New(q, nil).Get(0)
	require.NoError(t, err)
	assert.Equal(t, []string{registrytesting.Bob, registrytesting.Carol}, p.Voters)
	assert.Equal(t, uint64(2), p.VoteCount)
	assert.Equal(t, types.ProposalStatusAccepted, p.Status)
	assert.Equal(t, uint64(1), p.Height)
	assert.Equal(t, testChainID, q.ChainId())
	assert.Equal(t, int64(2), q.Version())
}

func TestQueryStateIgnoresUncommittedWrites(t *testing.T) {
	db := newTestDB(t)
	st := db.NewState()
	_, _, err := registry.New(st, nil).Create(registrytesting.Alice, "a", "", 1)
	require.NoError(t, err)
	commit(t, db, st)

	pending := db.NewState()
	_, _, err = registry.New(pending, nil).Create(registrytesting.Alice, "b", "", 1)
	require.NoError(t, err)
	_, err = pending.Update()
	require.NoError(t, err)

	q, err := db.QueryState()
	require.NoError(t, err)
	n, err := q.ProposalCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestQueryStateBeforeFirstCommit(t *testing.T) {
	q, err := newTestDB(t).QueryState()
	require.NoError(t, err)
	all, err := registry.New(q, nil).GetAll()
	require.NoError(t, err)
	assert.Empty(t, all)
	_, err = q.Update()
	assert.ErrorIs(t, err, ErrReadOnlyState)
}

func TestCloneIsolatesWrites(t *testing.T) {
	db := newTestDB(t)
	st := db.NewState()
	_, _, err := registry.New(st, nil).Create(registrytesting.Alice, "a", "", 1)
	require.NoError(t, err)

	c := st.Clone()
	_, err = registry.New(c, nil).Vote(registrytesting.Bob, 0)
	require.NoError(t, err)
	require.NoError(t, c.IncNonce(registrytesting.Bob))

	voted, err := st.HasVoted(0, registrytesting.Bob)
	require.NoError(t, err)
	assert.False(t, voted)
	nonce, err := st.Nonce(registrytesting.Bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), nonce)

	voted, err = c.HasVoted(0, registrytesting.Bob)
	require.NoError(t, err)
	assert.True(t, voted)
}

func TestUpdateIsDeterministic(t *testing.T) {
	build := func() *State {
		st := newTestDB(t).NewState()
		st.SetChainId(testChainID)
		r := registry.New(st, nil)
		_, _, err := r.Create(registrytesting.Alice, "a", "x", 2)
		require.NoError(t, err)
		_, err = r.Vote(registrytesting.Carol, 0)
		require.NoError(t, err)
		require.NoError(t, st.IncNonce(registrytesting.Carol))
		return st
	}
	h1, err := build().Update()
	require.NoError(t, err)
	h2, err := build().Update()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestVerify(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	db := newTestDB(t)
	st := db.NewState()
	st.SetChainId(testChainID)
	require.NoError(t, st.IncNonce(key.Address()))

	specs := map[string]struct {
		nonce    uint64
		chainID  string
		allowGap bool
		unsigned bool
		expErr   error
	}{
		"current nonce": {
			nonce:   1,
			chainID: testChainID,
		},
		"stale nonce": {
			nonce:   0,
			chainID: testChainID,
			expErr:  ErrTxNonceInvalid,
		},
		"future nonce": {
			nonce:   3,
			chainID: testChainID,
			expErr:  ErrTxNonceInvalid,
		},
		"future nonce with gap": {
			nonce:    3,
			chainID:  testChainID,
			allowGap: true,
		},
		"unsigned": {
			nonce:    1,
			chainID:  testChainID,
			unsigned: true,
			expErr:   ErrTxSigInvalid,
		},
		"signed for another chain": {
			nonce:   1,
			chainID: "other-chain",
			expErr:  ErrTxNonceInvalid,
		},
	}
	for msg, spec := range specs {
		t.Run(msg, func(t *testing.T) {
			btx := tx.NewVoteTx(spec.nonce, 0)
			if !spec.unsigned {
				require.NoError(t, btx.Sign(key, spec.chainID))
			}
			sender, err := st.Verify(btx, spec.allowGap)
			if spec.expErr != nil {
				assert.ErrorIs(t, err, spec.expErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, key.Address(), sender)
		})
	}
}

func TestManifest(t *testing.T) {
	db := newTestDB(t)
	st := db.NewState()
	st.SetManifest("pvote/v1")
	commit(t, db, st)

	q, err := db.QueryState()
	require.NoError(t, err)
	m, err := q.GetManifest()
	require.NoError(t, err)
	assert.Equal(t, "pvote/v1", m)
}
