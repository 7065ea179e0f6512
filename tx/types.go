package tx

import (
	"errors"
)

type TxType uint8

const (
	TxTypeUnknown        TxType = 0
	TxTypeCreateProposal TxType = 1
	TxTypeVote           TxType = 2
)

func (t TxType) String() string {
	switch t {
	case TxTypeCreateProposal:
		return "create_proposal"
	case TxTypeVote:
		return "vote"
	default:
		return "unknown"
	}
}

const TxVersion1 uint8 = 1

// MaxTxSize bounds an encoded transaction accepted by CheckTx.
const MaxTxSize = 64 * 1024

var (
	ErrInvalidTx            = errors.New("invalid tx")
	ErrUnsupportedTxType    = errors.New("unsupported tx type")
	ErrUnsupportedTxVersion = errors.New("unsupported tx version")
	ErrTxTooLarge           = errors.New("tx too large")
	ErrMissingSignature     = errors.New("missing signature")
)
