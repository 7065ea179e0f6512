package tx

import (
	"encoding/json"
	"fmt"

	"github.com/calehh/pvote/crypto"
)

type Tx struct {
	Version uint8  `json:"version"`
	Type    TxType `json:"type"`
	Nonce   uint64 `json:"nonce"`
	Tx      any    `json:"tx"`
	Sig     []byte `json:"sig"`
}

type CreateProposalTx struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Quorum      uint64 `json:"quorum"`
}

type VoteTx struct {
	Proposal uint64 `json:"proposal"`
}

type txTmpl[T any] struct {
	Version uint8  `json:"version"`
	Type    TxType `json:"type"`
	Nonce   uint64 `json:"nonce"`
	Tx      T      `json:"tx"`
	Sig     []byte `json:"sig"`
}

// SigData is the envelope JSON with the signature slot holding the chain id,
// binding every signature to one chain.
func (tx *Tx) SigData(chainID []byte) (dat []byte, err error) {
	ntx := *tx
	ntx.Sig = chainID
	dat, err = json.Marshal(ntx)
	return
}

// Sign fills Sig using key over SigData(chainID).
func (tx *Tx) Sign(key *crypto.Key, chainID string) error {
	dat, err := tx.SigData([]byte(chainID))
	if err != nil {
		return err
	}
	sig, err := key.Sign(dat)
	if err != nil {
		return err
	}
	tx.Sig = sig
	return nil
}

// Sender recovers the signing address for chainID.
func (tx *Tx) Sender(chainID string) (string, error) {
	if len(tx.Sig) == 0 {
		return "", ErrMissingSignature
	}
	dat, err := tx.SigData([]byte(chainID))
	if err != nil {
		return "", err
	}
	return crypto.RecoverAddress(dat, tx.Sig)
}

func parseTxType(dat []byte) TxType {
	var tx struct {
		Type TxType `json:"type"`
	}
	err := json.Unmarshal(dat, &tx)
	if err != nil {
		return TxTypeUnknown
	}
	return tx.Type
}

func unmarshalTx[T any](dat []byte) (btx *Tx, err error) {
	var txt txTmpl[T]
	err = json.Unmarshal(dat, &txt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}
	btx = new(Tx)
	btx.Version = txt.Version
	btx.Type = txt.Type
	btx.Nonce = txt.Nonce
	btx.Tx = &txt.Tx
	btx.Sig = txt.Sig
	return
}

func UnmarshalTx(dat []byte) (btx *Tx, err error) {
	if len(dat) > MaxTxSize {
		return nil, ErrTxTooLarge
	}
	tp := parseTxType(dat)
	switch tp {
	case TxTypeCreateProposal:
		btx, err = unmarshalTx[CreateProposalTx](dat)
	case TxTypeVote:
		btx, err = unmarshalTx[VoteTx](dat)
	default:
		return nil, ErrUnsupportedTxType
	}
	if err != nil {
		return nil, err
	}
	if btx.Version != TxVersion1 {
		return nil, ErrUnsupportedTxVersion
	}
	return
}

func MarshalTx(btx *Tx) (dat []byte, err error) {
	return json.Marshal(btx)
}

// NewCreateProposalTx builds an unsigned create transaction.
func NewCreateProposalTx(nonce uint64, name, description string, quorum uint64) *Tx {
	return &Tx{
		Version: TxVersion1,
		Type:    TxTypeCreateProposal,
		Nonce:   nonce,
		Tx: &CreateProposalTx{
			Name:        name,
			Description: description,
			Quorum:      quorum,
		},
	}
}

// NewVoteTx builds an unsigned vote transaction.
func NewVoteTx(nonce uint64, proposal uint64) *Tx {
	return &Tx{
		Version: TxVersion1,
		Type:    TxTypeVote,
		Nonce:   nonce,
		Tx:      &VoteTx{Proposal: proposal},
	}
}
