package tx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calehh/pvote/crypto"
)

const testChainID = "test-chain"

func TestSignedTxRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	specs := map[string]struct {
		src    *Tx
		expTx  any
		expTyp TxType
	}{
		"create proposal": {
			src:    NewCreateProposalTx(0, "Proposal 1", "Here is a proposal", 5),
			expTx:  &CreateProposalTx{Name: "Proposal 1", Description: "Here is a proposal", Quorum: 5},
			expTyp: TxTypeCreateProposal,
		},
		"vote": {
			src:    NewVoteTx(3, 7),
			expTx:  &VoteTx{Proposal: 7},
			expTyp: TxTypeVote,
		},
	}
	for msg, spec := range specs {
		t.Run(msg, func(t *testing.T) {
			require.NoError(t, spec.src.Sign(key, testChainID))
			dat, err := MarshalTx(spec.src)
			require.NoError(t, err)

			got, err := UnmarshalTx(dat)
			require.NoError(t, err)
			assert.Equal(t, spec.expTyp, got.Type)
			assert.Equal(t, spec.expTx, got.Tx)
			assert.Equal(t, spec.src.Nonce, got.Nonce)

			sender, err := got.Sender(testChainID)
			require.NoError(t, err)
			assert.Equal(t, key.Address(), sender)

			// another chain recovers some other address
			other, err := got.Sender("other-chain")
			require.NoError(t, err)
			assert.NotEqual(t, key.Address(), other)
		})
	}
}

func TestUnmarshalTxRejects(t *testing.T) {
	specs := map[string]struct {
		src    []byte
		expErr error
	}{
		"unknown type": {
			src:    []byte(`{"version":1,"type":9,"nonce":0,"tx":{}}`),
			expErr: ErrUnsupportedTxType,
		},
		"not json": {
			src:    []byte(`vote please`),
			expErr: ErrUnsupportedTxType,
		},
		"old version": {
			src:    []byte(`{"version":0,"type":2,"nonce":0,"tx":{"proposal":1}}`),
			expErr: ErrUnsupportedTxVersion,
		},
		"payload of wrong shape": {
			src:    []byte(`{"type":2,"version":1,"tx":"oops"}`),
			expErr: ErrInvalidTx,
		},
		"nonce not a number": {
			src:    []byte(`{"type":1,"version":1,"nonce":"x"}`),
			expErr: ErrInvalidTx,
		},
		"too large": {
			src:    make([]byte, MaxTxSize+1),
			expErr: ErrTxTooLarge,
		},
	}
	for msg, spec := range specs {
		t.Run(msg, func(t *testing.T) {
			_, err := UnmarshalTx(spec.src)
			assert.ErrorIs(t, err, spec.expErr)
		})
	}
}

func TestSenderRequiresSignature(t *testing.T) {
	_, err := NewVoteTx(0, 0).Sender(testChainID)
	assert.ErrorIs(t, err, ErrMissingSignature)
}
