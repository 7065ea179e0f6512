package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	ctypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"

	"github.com/calehh/pvote/tx"
	"github.com/calehh/pvote/types"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ChainClient is the part of the CometBFT RPC the indexer reads.
type ChainClient interface {
	Status(ctx context.Context) (*ctypes.ResultStatus, error)
	Block(ctx context.Context, height *int64) (*ctypes.ResultBlock, error)
	BlockResults(ctx context.Context, height *int64) (*ctypes.ResultBlockResults, error)
	Genesis(ctx context.Context) (*ctypes.ResultGenesis, error)
}

type ChainIndexer struct {
	logger        cmtlog.Logger
	Height        int64
	db            *gorm.DB
	cli           ChainClient
	chainId       string
	interval      time.Duration
	eventHandlers map[string]eventHandler
	// genesis proposals have been stored
	seeded bool
}

// txMeta is what the indexer knows about the tx that emitted an event.
type txMeta struct {
	height int64
	index  int
	data   []byte
	tx     *tx.Tx
	sender string
}

type eventHandler func(ctx context.Context, event abci.Event, meta txMeta) error

func OpenDB(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Proposal{}, &ProposalVote{}, &Height{}).Error; err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func NewChainIndexer(logger cmtlog.Logger, dbPath string, chainUrl string, chainId string, interval time.Duration) (*ChainIndexer, error) {
	logger.Info("NewChainIndexer", "dbPath", dbPath, "url", chainUrl)
	cli, err := comethttp.New(chainUrl, "/websocket")
	if err != nil {
		return nil, err
	}
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}
	return newChainIndexer(logger, db, cli, chainId, interval)
}

func newChainIndexer(logger cmtlog.Logger, db *gorm.DB, cli ChainClient, chainId string, interval time.Duration) (*ChainIndexer, error) {
	h := Height{Id: 1}
	err := db.First(&h).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if interval <= 0 {
		interval = time.Second
	}
	c := &ChainIndexer{
		logger:   logger.With("module", "indexer"),
		Height:   int64(h.Height + 1),
		db:       db,
		cli:      cli,
		chainId:  chainId,
		interval: interval,
		seeded:   err == nil,
	}
	c.eventHandlers = map[string]eventHandler{
		types.EventProposalCreatedType: c.handleEventProposalCreated,
		types.EventProposalVotedType:   c.handleEventProposalVoted,
	}
	return c, nil
}

func (c *ChainIndexer) Close() error {
	return c.db.Close()
}

func (c *ChainIndexer) handleEvent(ctx context.Context, event abci.Event, meta txMeta) error {
	if h, ok := c.eventHandlers[event.Type]; ok {
		return h(ctx, event, meta)
	}
	return nil
}

func (c *ChainIndexer) handleEventProposalCreated(ctx context.Context, event abci.Event, meta txMeta) error {
	ev := types.DecodeEventProposalCreated(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return nil
	}
	id, ok := types.DecodeProposalID(meta.data)
	if !ok {
		return fmt.Errorf("created proposal without id at height %d tx %d", meta.height, meta.index)
	}
	proposal := Proposal{
		ProposalId:      id,
		Name:            ev.Name,
		Quorum:          ev.Quorum,
		Status:          uint64(types.ProposalStatusPending),
		ProposerAddress: meta.sender,
		NewHeight:       uint64(meta.height),
		CreateTimestamp: time.Now().Unix(),
	}
	if meta.tx != nil {
		if ptx, ok := meta.tx.Tx.(*tx.CreateProposalTx); ok {
			proposal.Description = ptx.Description
		}
	}
	return c.saveProposal(&proposal)
}

// saveProposal inserts proposal or replaces the row with the same ProposalId.
func (c *ChainIndexer) saveProposal(proposal *Proposal) error {
	var existing Proposal
	err := c.db.Where("proposal_id = ?", proposal.ProposalId).First(&existing).Error
	if err == nil {
		proposal.Id = existing.Id
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return c.db.Save(proposal).Error
}

// seedGenesis stores the proposals of the genesis app_state. They are
// created by InitChain, which emits no events.
func (c *ChainIndexer) seedGenesis(ctx context.Context) error {
	res, err := c.cli.Genesis(ctx)
	if err != nil {
		return fmt.Errorf("get genesis: %w", err)
	}
	gs, err := types.ParseGenesisState(res.Genesis.AppState)
	if err != nil {
		return err
	}
	for i, p := range gs.Proposals {
		proposal := Proposal{
			ProposalId:      uint64(i),
			Name:            p.Name,
			Description:     p.Description,
			Quorum:          p.Quorum,
			Status:          uint64(types.ProposalStatusPending),
			ProposerAddress: types.GenesisProposer,
			CreateTimestamp: res.Genesis.GenesisTime.Unix(),
		}
		if err := c.saveProposal(&proposal); err != nil {
			return err
		}
	}
	c.logger.Info("seeded genesis proposals", "count", len(gs.Proposals))
	return nil
}

func (c *ChainIndexer) handleEventProposalVoted(ctx context.Context, event abci.Event, meta txMeta) error {
	ev := types.DecodeEventProposalVoted(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return nil
	}
	var proposal Proposal
	if err := c.db.Where("proposal_id = ?", ev.Proposal).First(&proposal).Error; err != nil {
		return fmt.Errorf("vote on unindexed proposal %d: %w", ev.Proposal, err)
	}
	var vote ProposalVote
	err := c.db.Where("proposal = ? AND voter_address = ?", ev.Proposal, ev.Voter).First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		vote = ProposalVote{
			Proposal:     ev.Proposal,
			VoterAddress: ev.Voter,
			Seq:          ev.VoteCount - 1,
			Height:       uint64(meta.height),
			TxIndex:      meta.index,
		}
		if err := c.db.Create(&vote).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	if proposal.Status != uint64(types.ProposalStatusAccepted) && ev.Status == types.ProposalStatusAccepted {
		proposal.AcceptHeight = uint64(meta.height)
	}
	proposal.VoteCount = ev.VoteCount
	proposal.Status = uint64(ev.Status)
	return c.db.Save(&proposal).Error
}

// indexBlock applies the events of every successful tx in the block.
// Failed txs carry no events worth keeping.
func (c *ChainIndexer) indexBlock(ctx context.Context, height int64, txs [][]byte, results []*abci.ExecTxResult) error {
	for i, res := range results {
		if res == nil || res.Code != types.CodeOK {
			continue
		}
		meta := txMeta{
			height: height,
			index:  i,
			data:   res.Data,
		}
		if i < len(txs) {
			if btx, err := tx.UnmarshalTx(txs[i]); err == nil {
				meta.tx = btx
				meta.sender, _ = btx.Sender(c.chainId)
			}
		}
		for _, event := range res.Events {
			if err := c.handleEvent(ctx, event, meta); err != nil {
				return err
			}
		}
	}
	return c.db.Save(&Height{Id: 1, Height: uint64(height)}).Error
}

func (c *ChainIndexer) indexHeight(ctx context.Context, height int64) error {
	blk, err := c.cli.Block(ctx, &height)
	if err != nil {
		return fmt.Errorf("get block %d: %w", height, err)
	}
	results, err := c.cli.BlockResults(ctx, &height)
	if err != nil {
		return fmt.Errorf("get block results %d: %w", height, err)
	}
	txs := make([][]byte, len(blk.Block.Data.Txs))
	for i, t := range blk.Block.Data.Txs {
		txs[i] = t
	}
	return c.indexBlock(ctx, height, txs, results.TxsResults)
}

// Sync indexes every block up to the latest height reported by the node.
func (c *ChainIndexer) Sync(ctx context.Context) error {
	status, err := c.cli.Status(ctx)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	if c.chainId == "" {
		c.chainId = status.NodeInfo.Network
	}
	if !c.seeded {
		if err := c.seedGenesis(ctx); err != nil {
			return err
		}
		c.seeded = true
	}
	for status.SyncInfo.LatestBlockHeight >= c.Height {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = c.indexHeight(ctx, c.Height)
		if err != nil {
			return err
		}
		c.logger.Debug("indexed", "height", c.Height)
		c.Height++
	}
	return nil
}

func (c *ChainIndexer) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sync(ctx); err != nil {
				c.logger.Error("indexer sync fail", "height", c.Height, "err", err)
			}
		}
	}
}

func pageArgs(page int, pageSize int) (int, int) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func (c *ChainIndexer) getProposals(page int, pageSize int) ([]Proposal, uint64, error) {
	page, pageSize = pageArgs(page, pageSize)
	proposals := make([]Proposal, 0)
	err := c.db.Order("proposal_id asc").Offset(page * pageSize).Limit(pageSize).Find(&proposals).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = c.db.Model(&Proposal{}).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (c *ChainIndexer) getProposalsByProposerAddr(proposerAddr string, page int, pageSize int) ([]Proposal, uint64, error) {
	page, pageSize = pageArgs(page, pageSize)
	proposals := make([]Proposal, 0)
	err := c.db.Where("proposer_address = ?", proposerAddr).Order("proposal_id asc").Offset(page * pageSize).Limit(pageSize).Find(&proposals).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = c.db.Model(&Proposal{}).Where("proposer_address = ?", proposerAddr).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (c *ChainIndexer) getProposalsByStatus(status uint64, page int, pageSize int) ([]Proposal, uint64, error) {
	page, pageSize = pageArgs(page, pageSize)
	proposals := make([]Proposal, 0)
	err := c.db.Where("status = ?", status).Order("proposal_id asc").Offset(page * pageSize).Limit(pageSize).Find(&proposals).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = c.db.Model(&Proposal{}).Where("status = ?", status).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (c *ChainIndexer) getProposalById(proposalId uint64) (Proposal, error) {
	var proposal Proposal
	err := c.db.Where("proposal_id = ?", proposalId).First(&proposal).Error
	if err != nil {
		return Proposal{}, err
	}
	return proposal, nil
}

func (c *ChainIndexer) getVotesByProposal(proposal uint64, page int, pageSize int) ([]ProposalVote, uint64, error) {
	page, pageSize = pageArgs(page, pageSize)
	votes := make([]ProposalVote, 0)
	err := c.db.Where("proposal = ?", proposal).Order("seq asc").Offset(page * pageSize).Limit(pageSize).Find(&votes).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = c.db.Model(&ProposalVote{}).Where("proposal = ?", proposal).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return votes, total, nil
}

func (c *ChainIndexer) getVotesByVoter(voter string, page int, pageSize int) ([]ProposalVote, uint64, error) {
	page, pageSize = pageArgs(page, pageSize)
	votes := make([]ProposalVote, 0)
	err := c.db.Where("voter_address = ?", voter).Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&votes).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = c.db.Model(&ProposalVote{}).Where("voter_address = ?", voter).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return votes, total, nil
}

func (c *ChainIndexer) indexedHeight() (uint64, error) {
	h := Height{Id: 1}
	err := c.db.First(&h).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}
	return h.Height, nil
}
