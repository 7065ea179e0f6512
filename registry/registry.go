package registry

import (
	"errors"
	"fmt"

	"github.com/calehh/pvote/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

var (
	ErrDuplicateVote = errors.New("You've voted already")
	ErrNotFound      = errors.New("proposal not found")
	ErrInvalidQuorum = errors.New("quorum must be positive")
	ErrInvalidActor  = errors.New("actor identity is empty")
)

// Registry is the proposal/vote state machine. It is not safe for
// concurrent use; the block executor serializes every call.
type Registry struct {
	logger cmtlog.Logger
	store  Store
}

func New(store Store, logger cmtlog.Logger) *Registry {
	if logger == nil {
		logger = cmtlog.NewNopLogger()
	}
	return &Registry{
		logger: logger.With("module", "registry"),
		store:  store,
	}
}

// Create appends a Pending proposal and returns its id together with the
// ProposalCreated event.
func (r *Registry) Create(proposer, name, description string, quorum uint64) (id uint64, event *types.EventProposalCreated, err error) {
	if proposer == "" {
		return 0, nil, ErrInvalidActor
	}
	if quorum == 0 {
		return 0, nil, ErrInvalidQuorum
	}
	id, err = r.store.ProposalCount()
	if err != nil {
		return 0, nil, fmt.Errorf("read proposal count: %w", err)
	}
	proposal := &types.Proposal{
		Index:       id,
		Name:        name,
		Description: description,
		Quorum:      quorum,
		VoteCount:   0,
		Status:      types.ProposalStatusPending,
		Proposer:    proposer,
		Height:      r.store.Height(),
	}
	err = r.store.AppendProposal(proposal)
	if err != nil {
		return 0, nil, fmt.Errorf("append proposal %d: %w", id, err)
	}
	r.logger.Debug("proposal created", "proposal", id, "proposer", proposer, "quorum", quorum)
	event = &types.EventProposalCreated{
		Name:   name,
		Quorum: quorum,
	}
	return
}

// Vote counts one vote from voter on proposal id. Status moves to Accepted
// in the call that reaches quorum and never moves back.
func (r *Registry) Vote(voter string, id uint64) (event *types.EventProposalVoted, err error) {
	if voter == "" {
		return nil, ErrInvalidActor
	}
	proposal, err := r.load(id)
	if err != nil {
		return nil, err
	}
	voted, err := r.store.HasVoted(id, voter)
	if err != nil {
		return nil, fmt.Errorf("check voter on proposal %d: %w", id, err)
	}
	if voted {
		return nil, ErrDuplicateVote
	}

	err = r.store.AddVoter(id, proposal.VoteCount, voter)
	if err != nil {
		return nil, fmt.Errorf("add voter on proposal %d: %w", id, err)
	}
	proposal.VoteCount += 1
	if proposal.VoteCount >= proposal.Quorum && proposal.Status != types.ProposalStatusAccepted {
		proposal.Status = types.ProposalStatusAccepted
		r.logger.Debug("proposal accepted", "proposal", id, "votes", proposal.VoteCount, "quorum", proposal.Quorum)
	}
	err = r.store.UpdateProposal(proposal)
	if err != nil {
		return nil, fmt.Errorf("update proposal %d: %w", id, err)
	}
	r.logger.Debug("vote counted", "proposal", id, "voter", voter, "votes", proposal.VoteCount)
	event = &types.EventProposalVoted{
		Proposal:  id,
		Voter:     voter,
		VoteCount: proposal.VoteCount,
		Status:    proposal.Status,
	}
	return
}

// Get returns the proposal at id with its voters.
func (r *Registry) Get(id uint64) (*types.Proposal, error) {
	proposal, err := r.load(id)
	if err != nil {
		return nil, err
	}
	voters, err := r.store.Voters(id)
	if err != nil {
		return nil, fmt.Errorf("load voters of proposal %d: %w", id, err)
	}
	proposal.Voters = voters
	return proposal, nil
}

// GetAll returns every proposal in creation order.
func (r *Registry) GetAll() ([]*types.Proposal, error) {
	n, err := r.store.ProposalCount()
	if err != nil {
		return nil, fmt.Errorf("read proposal count: %w", err)
	}
	proposals := make([]*types.Proposal, 0, n)
	for id := uint64(0); id < n; id++ {
		proposal, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, proposal)
	}
	return proposals, nil
}

func (r *Registry) HasVoted(id uint64, voter string) (bool, error) {
	if _, err := r.load(id); err != nil {
		return false, err
	}
	return r.store.HasVoted(id, voter)
}

func (r *Registry) Count() (uint64, error) {
	return r.store.ProposalCount()
}

func (r *Registry) load(id uint64) (*types.Proposal, error) {
	n, err := r.store.ProposalCount()
	if err != nil {
		return nil, fmt.Errorf("read proposal count: %w", err)
	}
	if id >= n {
		return nil, ErrNotFound
	}
	proposal, err := r.store.Proposal(id)
	if err != nil {
		return nil, fmt.Errorf("load proposal %d: %w", id, err)
	}
	if proposal == nil {
		return nil, ErrNotFound
	}
	return proposal, nil
}
