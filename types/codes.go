package types

// ABCI result codes returned in CheckTx, ExecTxResult and Query responses.
const (
	CodeOK            uint32 = 0
	CodeInvalidTx     uint32 = 1
	CodeDuplicateVote uint32 = 2
	CodeNotFound      uint32 = 3
	CodeInvalidQuorum uint32 = 4
	CodeNonceInvalid  uint32 = 5
	CodeSigInvalid    uint32 = 6
	CodeInternal      uint32 = 7
	CodeUnknownPath   uint32 = 404
)
