package types

import (
	"testing"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventProposalCreatedAttributes(t *testing.T) {
	event := EncodeEventProposalCreated(&EventProposalCreated{Name: "Proposal 1", Quorum: 3})
	assert.Equal(t, EventProposalCreatedType, event.Type)
	require.Len(t, event.Attributes, 2)
	assert.Equal(t, "name", event.Attributes[0].Key)
	assert.Equal(t, "quorum", event.Attributes[1].Key)
	assert.Equal(t, &EventProposalCreated{Name: "Proposal 1", Quorum: 3}, DecodeEventProposalCreated(event))
}

func TestDecodeEventProposalVoted(t *testing.T) {
	valid := EncodeEventProposalVoted(&EventProposalVoted{Proposal: 4, Voter: "0xabc", VoteCount: 2, Status: ProposalStatusAccepted})
	withStatus := func(status string) abci.Event {
		return abci.Event{
			Type: EventProposalVotedType,
			Attributes: []abci.EventAttribute{
				{Key: "proposal", Value: "4"},
				{Key: "voter", Value: "0xabc"},
				{Key: "count", Value: "2"},
				{Key: "status", Value: status},
			},
		}
	}

	specs := map[string]struct {
		src abci.Event
		exp *EventProposalVoted
	}{
		"round trip": {
			src: valid,
			exp: &EventProposalVoted{Proposal: 4, Voter: "0xabc", VoteCount: 2, Status: ProposalStatusAccepted},
		},
		"pending": {
			src: withStatus("1"),
			exp: &EventProposalVoted{Proposal: 4, Voter: "0xabc", VoteCount: 2, Status: ProposalStatusPending},
		},
		"reserved status":     {src: withStatus("0")},
		"unknown status":      {src: withStatus("3")},
		"status not a number": {src: withStatus("accepted")},
		"other event type": {
			src: abci.Event{Type: EventProposalCreatedType, Attributes: valid.Attributes},
		},
	}
	for msg, spec := range specs {
		t.Run(msg, func(t *testing.T) {
			assert.Equal(t, spec.exp, DecodeEventProposalVoted(spec.src))
		})
	}
}

func TestProposalStatusString(t *testing.T) {
	assert.Equal(t, "pending", ProposalStatusPending.String())
	assert.Equal(t, "accepted", ProposalStatusAccepted.String())
	assert.Equal(t, "unknown(0)", ProposalStatusNone.String())
}
