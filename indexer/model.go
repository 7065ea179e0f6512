package indexer

// sqlite models

type Height struct {
	Id     uint64 `gorm:"primary_key" json:"id"`
	Height uint64 `json:"height"`
}

// Proposal mirrors the on-chain proposal. ProposalId is the registry id,
// which starts at 0 and so can't double as the row key.
type Proposal struct {
	Id              uint64 `gorm:"primary_key;auto_increment" json:"-"`
	ProposalId      uint64 `gorm:"unique_index" json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Quorum          uint64 `json:"quorum"`
	VoteCount       uint64 `json:"vote_count"`
	Status          uint64 `json:"status"`
	ProposerAddress string `gorm:"index" json:"proposer_address"`
	NewHeight       uint64 `json:"new_height"`
	AcceptHeight    uint64 `json:"accept_height"`
	CreateTimestamp int64  `json:"create_timestamp"`
}

type ProposalVote struct {
	Id           uint64 `gorm:"primary_key;auto_increment" json:"-"`
	Proposal     uint64 `gorm:"index" json:"proposal"`
	VoterAddress string `gorm:"index" json:"voter_address"`
	Seq          uint64 `json:"seq"`
	Height       uint64 `json:"height"`
	TxIndex      int    `json:"tx_index"`
}
