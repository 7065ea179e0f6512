package types

import (
	"encoding/binary"
	"fmt"
	"strconv"

	abci "github.com/cometbft/cometbft/abci/types"
)

const (
	EventProposalCreatedType = "ProposalCreated"
	EventProposalVotedType   = "ProposalVoted"
)

// EventProposalCreated is emitted once per successful create and carries
// exactly the proposal name and its quorum.
type EventProposalCreated struct {
	Name   string `json:"name"`
	Quorum uint64 `json:"quorum"`
}

func EncodeEventProposalCreated(event *EventProposalCreated) abci.Event {
	return abci.Event{
		Type: EventProposalCreatedType,
		Attributes: []abci.EventAttribute{
			{Key: "name", Value: event.Name, Index: true},
			{Key: "quorum", Value: fmt.Sprintf("%v", event.Quorum), Index: false},
		},
	}
}

func DecodeEventProposalCreated(originEvent abci.Event) *EventProposalCreated {
	if originEvent.Type != EventProposalCreatedType {
		return nil
	}
	event := &EventProposalCreated{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "name":
			event.Name = v.Value
		case "quorum":
			quorum, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Quorum = quorum
		}
	}
	return event
}

type EventProposalVoted struct {
	Proposal  uint64         `json:"proposal"`
	Voter     string         `json:"voter"`
	VoteCount uint64         `json:"voteCount"`
	Status    ProposalStatus `json:"status"`
}

func EncodeEventProposalVoted(event *EventProposalVoted) abci.Event {
	return abci.Event{
		Type: EventProposalVotedType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "voter", Value: event.Voter, Index: true},
			{Key: "count", Value: fmt.Sprintf("%v", event.VoteCount), Index: false},
			{Key: "status", Value: fmt.Sprintf("%v", uint64(event.Status)), Index: false},
		},
	}
}

func DecodeEventProposalVoted(originEvent abci.Event) *EventProposalVoted {
	if originEvent.Type != EventProposalVotedType {
		return nil
	}
	event := &EventProposalVoted{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Proposal = proposal
		case "voter":
			event.Voter = v.Value
		case "count":
			count, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.VoteCount = count
		case "status":
			status, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Status = ProposalStatus(status)
		}
	}
	if !event.Status.Valid() {
		return nil
	}
	return event
}

// EncodeProposalID is the ExecTxResult.Data layout for a created proposal.
func EncodeProposalID(id uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}

func DecodeProposalID(dat []byte) (uint64, bool) {
	if len(dat) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(dat), true
}
