package types

import "fmt"

type Proposal struct {
	Index       uint64         `json:"index"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Quorum      uint64         `json:"quorum"`
	VoteCount   uint64         `json:"vote_count"`
	Status      ProposalStatus `json:"status"`
	Voters      []string       `json:"voters"`
	Proposer    string         `json:"proposer"`
	Height      uint64         `json:"height"`
}

type ProposalStatus uint64

const (
	ProposalStatusNone     ProposalStatus = 0
	ProposalStatusPending  ProposalStatus = 1
	ProposalStatusAccepted ProposalStatus = 2
)

func (s ProposalStatus) String() string {
	switch s {
	case ProposalStatusPending:
		return "pending"
	case ProposalStatusAccepted:
		return "accepted"
	default:
		return fmt.Sprintf("unknown(%d)", uint64(s))
	}
}

func (s ProposalStatus) Valid() bool {
	return s == ProposalStatusPending || s == ProposalStatusAccepted
}
