package registry

import (
	"github.com/calehh/pvote/types"
)

// Store is the persistence port of the registry. Proposal returns a copy
// without voters, or nil when the id was never appended.
type Store interface {
	ProposalCount() (uint64, error)
	Proposal(id uint64) (*types.Proposal, error)
	AppendProposal(proposal *types.Proposal) error
	UpdateProposal(proposal *types.Proposal) error
	HasVoted(id uint64, voter string) (bool, error)
	AddVoter(id uint64, seq uint64, voter string) error
	Voters(id uint64) ([]string, error)
	Height() uint64
}

type memProposal struct {
	proposal types.Proposal
	voters   []string
	voterSet map[string]struct{}
}

// MemStore keeps the registry in an append-only arena indexed by id.
type MemStore struct {
	proposals []*memProposal
}

var _ Store = &MemStore{}

func NewMemStore() *MemStore {
	return &MemStore{
		proposals: make([]*memProposal, 0),
	}
}

// NewMemRegistry is a convenience for an in-process registry with no chain behind it.
func NewMemRegistry() *Registry {
	return New(NewMemStore(), nil)
}

func (s *MemStore) ProposalCount() (uint64, error) {
	return uint64(len(s.proposals)), nil
}

func (s *MemStore) Proposal(id uint64) (*types.Proposal, error) {
	if id >= uint64(len(s.proposals)) {
		return nil, nil
	}
	p := s.proposals[id].proposal
	p.Voters = nil
	return &p, nil
}

func (s *MemStore) AppendProposal(proposal *types.Proposal) error {
	if proposal.Index != uint64(len(s.proposals)) {
		return ErrNotFound
	}
	p := *proposal
	p.Voters = nil
	s.proposals = append(s.proposals, &memProposal{
		proposal: p,
		voters:   make([]string, 0),
		voterSet: make(map[string]struct{}),
	})
	return nil
}

func (s *MemStore) UpdateProposal(proposal *types.Proposal) error {
	if proposal.Index >= uint64(len(s.proposals)) {
		return ErrNotFound
	}
	p := *proposal
	p.Voters = nil
	s.proposals[proposal.Index].proposal = p
	return nil
}

func (s *MemStore) HasVoted(id uint64, voter string) (bool, error) {
	if id >= uint64(len(s.proposals)) {
		return false, nil
	}
	_, ok := s.proposals[id].voterSet[voter]
	return ok, nil
}

func (s *MemStore) AddVoter(id uint64, seq uint64, voter string) error {
	if id >= uint64(len(s.proposals)) {
		return ErrNotFound
	}
	mp := s.proposals[id]
	mp.voterSet[voter] = struct{}{}
	mp.voters = append(mp.voters, voter)
	return nil
}

func (s *MemStore) Voters(id uint64) ([]string, error) {
	if id >= uint64(len(s.proposals)) {
		return nil, ErrNotFound
	}
	voters := make([]string, len(s.proposals[id].voters))
	copy(voters, s.proposals[id].voters)
	return voters, nil
}

func (s *MemStore) Height() uint64 {
	return 0
}
