// Package registrytesting holds behaviour checks shared by every registry.Store.
package registrytesting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calehh/pvote/registry"
	"github.com/calehh/pvote/types"
)

const (
	Alice = "0x00000000000000000000000000000000000A11CE"
	Bob   = "0x0000000000000000000000000000000000000B0B"
	Carol = "0x00000000000000000000000000000000000CA201"
)

// RunStoreConformance exercises the registry state machine on top of the
// stores returned by newStore. Each subtest gets a fresh store.
func RunStoreConformance(t *testing.T, newStore func(t *testing.T) registry.Store) {
	t.Run("empty registry", func(t *testing.T) {
		r := registry.New(newStore(t), nil)
		all, err := r.GetAll()
		require.NoError(t, err)
		assert.NotNil(t, all)
		assert.Len(t, all, 0)
	})

	t.Run("create returns event and pending proposal", func(t *testing.T) {
		r := registry.New(newStore(t), nil)
		id, ev, err := r.Create(Alice, "Proposal 1", "Here is a proposal", 3)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), id)
		assert.Equal(t, &types.EventProposalCreated{Name: "Proposal 1", Quorum: 3}, ev)

		p, err := r.Get(0)
		require.NoError(t, err)
		assert.Equal(t, "Proposal 1", p.Name)
		assert.Equal(t, "Here is a proposal", p.Description)
		assert.Equal(t, uint64(3), p.Quorum)
		assert.Equal(t, uint64(0), p.VoteCount)
		assert.Equal(t, types.ProposalStatusPending, p.Status)
		assert.Empty(t, p.Voters)
		assert.Equal(t, Alice, p.Proposer)
	})

	t.Run("ids follow creation order", func(t *testing.T) {
		r := registry.New(newStore(t), nil)
		for i, name := range []string{"A", "B", "C"} {
			id, _, err := r.Create(Alice, name, "Description "+name, uint64(i+2))
			require.NoError(t, err)
			assert.Equal(t, uint64(i), id)
		}
		all, err := r.GetAll()
		require.NoError(t, err)
		require.Len(t, all, 3)
		for i, p := range all {
			assert.Equal(t, uint64(i), p.Index)
		}
		assert.Equal(t, "A", all[0].Name)
		assert.Equal(t, "B", all[1].Name)
		assert.Equal(t, "C", all[2].Name)
	})

	t.Run("quorum boundary", func(t *testing.T) {
		r := registry.New(newStore(t), nil)
		_, _, err := r.Create(Alice, "P", "", 2)
		require.NoError(t, err)

		ev, err := r.Vote(Bob, 0)
		require.NoError(t, err)
		assert.Equal(t, types.ProposalStatusPending, ev.Status)
		p, err := r.Get(0)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), p.VoteCount)
		assert.Equal(t, types.ProposalStatusPending, p.Status)

		ev, err = r.Vote(Carol, 0)
		require.NoError(t, err)
		assert.Equal(t, &types.EventProposalVoted{Proposal: 0, Voter: Carol, VoteCount: 2, Status: types.ProposalStatusAccepted}, ev)
		p, err = r.Get(0)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), p.VoteCount)
		assert.Equal(t, types.ProposalStatusAccepted, p.Status)
		assert.Equal(t, []string{Bob, Carol}, p.Voters)
	})

	t.Run("duplicate vote leaves count unchanged", func(t *testing.T) {
		r := registry.New(newStore(t), nil)
		_, _, err := r.Create(Alice, "P", "", 2)
		require.NoError(t, err)
		_, err = r.Vote(Bob, 0)
		require.NoError(t, err)

		_, err = r.Vote(Bob, 0)
		require.ErrorIs(t, err, registry.ErrDuplicateVote)
		assert.EqualError(t, err, "You've voted already")

		p, err := r.Get(0)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), p.VoteCount)
		assert.Equal(t, []string{Bob}, p.Voters)
		assert.Equal(t, types.ProposalStatusPending, p.Status)
	})

	t.Run("votes past quorum keep counting and stay accepted", func(t *testing.T) {
		r := registry.New(newStore(t), nil)
		_, _, err := r.Create(Alice, "P", "", 1)
		require.NoError(t, err)
		for i, voter := range []string{Alice, Bob, Carol} {
			ev, err := r.Vote(voter, 0)
			require.NoError(t, err)
			assert.Equal(t, uint64(i+1), ev.VoteCount)
			assert.Equal(t, types.ProposalStatusAccepted, ev.Status)
		}
		p, err := r.Get(0)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), p.VoteCount)
		assert.Equal(t, uint64(len(p.Voters)), p.VoteCount)
		assert.Equal(t, types.ProposalStatusAccepted, p.Status)
	})

	t.Run("votes are scoped per proposal", func(t *testing.T) {
		r := registry.New(newStore(t), nil)
		_, _, err := r.Create(Alice, "A", "", 2)
		require.NoError(t, err)
		_, _, err = r.Create(Alice, "B", "", 3)
		require.NoError(t, err)
		_, err = r.Vote(Bob, 0)
		require.NoError(t, err)
		_, err = r.Vote(Bob, 1)
		require.NoError(t, err)

		voted, err := r.HasVoted(1, Bob)
		require.NoError(t, err)
		assert.True(t, voted)
		voted, err = r.HasVoted(1, Carol)
		require.NoError(t, err)
		assert.False(t, voted)
	})

	t.Run("unknown id", func(t *testing.T) {
		r := registry.New(newStore(t), nil)
		_, _, err := r.Create(Alice, "A", "", 2)
		require.NoError(t, err)

		_, err = r.Get(1)
		assert.ErrorIs(t, err, registry.ErrNotFound)
		_, err = r.Vote(Bob, 1)
		assert.ErrorIs(t, err, registry.ErrNotFound)
		_, err = r.HasVoted(7, Bob)
		assert.ErrorIs(t, err, registry.ErrNotFound)

		n, err := r.Count()
		require.NoError(t, err)
		assert.Equal(t, uint64(1), n)
	})

	t.Run("rejected create leaves registry untouched", func(t *testing.T) {
		r := registry.New(newStore(t), nil)
		_, _, err := r.Create(Alice, "zero", "", 0)
		assert.ErrorIs(t, err, registry.ErrInvalidQuorum)
		_, _, err = r.Create("", "anon", "", 1)
		assert.ErrorIs(t, err, registry.ErrInvalidActor)

		n, err := r.Count()
		require.NoError(t, err)
		assert.Equal(t, uint64(0), n)
	})
}
