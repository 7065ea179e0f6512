package indexer

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
)

type Service struct {
	engine     *gin.Engine
	indexer    *ChainIndexer
	listenAddr string
	srv        *http.Server
}

func NewService(listenAddr string, indexer *ChainIndexer) *Service {
	r := gin.Default()
	s := &Service{
		engine:     r,
		indexer:    indexer,
		listenAddr: listenAddr,
	}
	s.engine.POST("/getProposals", s.handleGetProposals)
	s.engine.POST("/getVotes", s.handleGetVotes)
	s.engine.GET("/status", s.handleStatus)
	return s
}

func (s *Service) Handler() http.Handler {
	return s.engine
}

// Start serves until Stop is called.
func (s *Service) Start() error {
	s.srv = &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Service) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

type ProposalInfo struct {
	Proposal Proposal       `json:"proposal"`
	Votes    []ProposalVote `json:"votes"`
}

type GetProposalsReq struct {
	ProposalId      *uint64 `json:"proposalId"`
	ProposerAddress string  `json:"proposer"`
	Status          *uint64 `json:"status"`
	Page            int     `json:"page"`
	PageSize        int     `json:"pageSize"`
}

type GetProposalResponse struct {
	Proposals []ProposalInfo `json:"proposals"`
	Total     uint64         `json:"total"`
}

func (s *Service) handleGetProposals(c *gin.Context) {
	var response GetProposalResponse
	response.Proposals = make([]ProposalInfo, 0)
	var requestData GetProposalsReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if requestData.ProposalId != nil {
		proposalInfo, err := s.getProposalInfoById(*requestData.ProposalId)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "proposal not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response.Proposals = append(response.Proposals, proposalInfo)
		response.Total = 1
		c.JSON(http.StatusOK, response)
		return
	}

	var proposals []Proposal
	var total uint64
	var err error
	switch {
	case requestData.ProposerAddress != "":
		proposals, total, err = s.indexer.getProposalsByProposerAddr(requestData.ProposerAddress, requestData.Page, requestData.PageSize)
	case requestData.Status != nil:
		proposals, total, err = s.indexer.getProposalsByStatus(*requestData.Status, requestData.Page, requestData.PageSize)
	default:
		proposals, total, err = s.indexer.getProposals(requestData.Page, requestData.PageSize)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	response.Total = total
	for _, proposal := range proposals {
		votes, _, err := s.indexer.getVotesByProposal(proposal.ProposalId, 0, maxPageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response.Proposals = append(response.Proposals, ProposalInfo{
			Proposal: proposal,
			Votes:    votes,
		})
	}
	c.JSON(http.StatusOK, response)
}

func (s *Service) getProposalInfoById(proposalId uint64) (ProposalInfo, error) {
	proposal, err := s.indexer.getProposalById(proposalId)
	if err != nil {
		return ProposalInfo{}, err
	}
	votes, _, err := s.indexer.getVotesByProposal(proposalId, 0, maxPageSize)
	if err != nil {
		return ProposalInfo{}, err
	}
	return ProposalInfo{
		Proposal: proposal,
		Votes:    votes,
	}, nil
}

type GetVotesReq struct {
	ProposalId *uint64 `json:"proposalId"`
	Voter      string  `json:"voter"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
}

type GetVotesResponse struct {
	Votes []ProposalVote `json:"votes"`
	Total uint64         `json:"total"`
}

func (s *Service) handleGetVotes(c *gin.Context) {
	var requestData GetVotesReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var votes []ProposalVote
	var total uint64
	var err error
	switch {
	case requestData.ProposalId != nil:
		votes, total, err = s.indexer.getVotesByProposal(*requestData.ProposalId, requestData.Page, requestData.PageSize)
	case requestData.Voter != "":
		votes, total, err = s.indexer.getVotesByVoter(requestData.Voter, requestData.Page, requestData.PageSize)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "proposalId or voter is required"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, GetVotesResponse{Votes: votes, Total: total})
}

func (s *Service) handleStatus(c *gin.Context) {
	h, err := s.indexer.indexedHeight()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"height": h})
}
