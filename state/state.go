package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/calehh/pvote/registry"
	"github.com/calehh/pvote/tx"
	"github.com/calehh/pvote/types"
)

var (
	KeyState         = "s"
	KeyProposalIndex = "pi"
	KeyProposalBody  = "p%d"
	KeyVoterFlag     = "pv%d/%s"
	KeyVoterSeq      = "pl%d/%020d"
	KeyAccountBody   = "a%s"
	KeyManifest      = "m"
)

var (
	ErrTxNonceInvalid  = errors.New("nonce invalid")
	ErrTxSigInvalid    = errors.New("signature invalid")
	ErrReadOnlyState   = errors.New("read only state")
	ErrCorruptedRecord = errors.New("corrupted record")
)

// tree is the read surface shared by the working tree and saved versions.
type tree interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
}

// StateHeader is stored under KeyState and carries the chain identity and
// the hashes of the last saved version.
type StateHeader struct {
	ChainId  string
	Height   uint64
	RootHash []byte
	Hash     []byte
}

func (h *StateHeader) Clone() *StateHeader {
	n := *h
	n.RootHash = common.CopyBytes(h.RootHash)
	n.Hash = common.CopyBytes(h.Hash)
	return &n
}

// State is a block's view of the registry. Writes are buffered until
// Update flushes them into the working tree, so a clone can be dropped
// without touching the tree.
type State struct {
	logger cmtlog.Logger
	db     tree
	mdb    *iavl.MutableTree
	dbVer  int64

	header        *StateHeader
	proposalCount uint64
	writes        map[string][]byte
}

var _ registry.Store = &State{}

func newState(db *iavl.MutableTree, logger cmtlog.Logger) *State {
	return &State{
		logger:        logger,
		db:            db,
		mdb:           db,
		dbVer:         0,
		header:        new(StateHeader),
		proposalCount: 0,
		writes:        make(map[string][]byte),
	}
}

func newReadOnlyState(db tree, ver int64, logger cmtlog.Logger) *State {
	return &State{
		logger: logger,
		db:     db,
		dbVer:  ver,
		header: new(StateHeader),
		writes: make(map[string][]byte),
	}
}

func (s *State) nextState() *State {
	n := &State{
		logger:        s.logger,
		db:            s.db,
		mdb:           s.mdb,
		dbVer:         s.dbVer,
		header:        s.header.Clone(),
		proposalCount: s.proposalCount,
		writes:        make(map[string][]byte),
	}
	if s.header.Hash != nil {
		n.header.Height = s.header.Height + 1
	}
	return n
}

// Clone copies the pending writes. Byte values are never mutated in place,
// so sharing them is safe.
func (s *State) Clone() *State {
	n := &State{
		logger:        s.logger,
		db:            s.db,
		mdb:           s.mdb,
		dbVer:         s.dbVer,
		header:        s.header.Clone(),
		proposalCount: s.proposalCount,
		writes:        make(map[string][]byte, len(s.writes)),
	}
	for k, v := range s.writes {
		n.writes[k] = v
	}
	return n
}

func (s *State) get(key string) ([]byte, error) {
	if val, ok := s.writes[key]; ok {
		return val, nil
	}
	val, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return val, nil
}

func (s *State) has(key string) (bool, error) {
	if _, ok := s.writes[key]; ok {
		return true, nil
	}
	ok, err := s.db.Has([]byte(key))
	if err != nil && errors.Is(err, leveldb.ErrNotFound) {
		return false, nil
	}
	return ok, err
}

func (s *State) set(key string, val []byte) {
	s.writes[key] = val
}

func (s *State) load() (err error) {
	val, err := s.get(KeyProposalIndex)
	if err != nil {
		return err
	}
	s.proposalCount = new(big.Int).SetBytes(val).Uint64()
	val, err = s.get(KeyState)
	if err != nil {
		return err
	}
	if val == nil {
		return nil
	}
	err = rlp.DecodeBytes(val, s.header)
	if err != nil {
		return fmt.Errorf("decode state header: %w", err)
	}
	if s.mdb != nil {
		h := s.mdb.Hash()
		if h != nil {
			s.calcHash(h, true)
		}
	}
	return
}

func (s *State) calcHash(rootHash []byte, update bool) (h common.Hash) {
	h = crypto.Keccak256Hash(rootHash)
	if update {
		s.header.RootHash = common.CopyBytes(rootHash)
		s.header.Hash = common.CopyBytes(h[:])
	}
	return
}

// Update flushes the buffered writes into the working tree in key order and
// returns the app hash the tree would commit to.
func (s *State) Update() (h common.Hash, err error) {
	if s.mdb == nil {
		return h, ErrReadOnlyState
	}
	var hash []byte
	defer func() {
		if hash == nil {
			s.mdb.Rollback()
		}
	}()
	val, err := rlp.EncodeToBytes(s.header)
	if err != nil {
		return
	}
	s.set(KeyState, val)

	keys := make([]string, 0, len(s.writes))
	for k := range s.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, err = s.mdb.Set([]byte(k), s.writes[k])
		if err != nil {
			return
		}
	}
	hash = s.mdb.WorkingHash()
	h = s.calcHash(hash, false)
	s.writes = make(map[string][]byte)
	return
}

func (s *State) save() (h common.Hash, err error) {
	if s.mdb == nil {
		return h, ErrReadOnlyState
	}
	hash, ver, err := s.mdb.SaveVersion()
	if err != nil {
		return h, err
	}
	s.dbVer = ver
	h = s.calcHash(hash, true)
	return
}

func (s *State) Header() *StateHeader {
	return s.header
}

func (s *State) Hash() (h common.Hash) {
	if s.header.Hash != nil {
		copy(h[:], s.header.Hash)
	}
	return
}

func (s *State) Version() int64 {
	return s.dbVer
}

func (s *State) SetChainId(chainId string) {
	s.header.ChainId = chainId
}

func (s *State) ChainId() string {
	return s.header.ChainId
}

func (s *State) SetHeight(height uint64) {
	s.header.Height = height
}

func (s *State) Height() uint64 {
	return s.header.Height
}

func (s *State) SetManifest(manifest string) {
	s.set(KeyManifest, []byte(manifest))
}

func (s *State) GetManifest() (manifest string, err error) {
	val, err := s.get(KeyManifest)
	if err != nil {
		return "", err
	}
	return string(val), nil
}

func (s *State) ProposalCount() (uint64, error) {
	return s.proposalCount, nil
}

func (s *State) Proposal(id uint64) (*types.Proposal, error) {
	val, err := s.get(fmt.Sprintf(KeyProposalBody, id))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, nil
	}
	proposal := new(types.Proposal)
	err = json.Unmarshal(val, proposal)
	if err != nil {
		return nil, fmt.Errorf("%w: proposal %d: %v", ErrCorruptedRecord, id, err)
	}
	proposal.Voters = nil
	return proposal, nil
}

func (s *State) putProposal(proposal *types.Proposal) error {
	p := *proposal
	p.Voters = nil
	val, err := json.Marshal(&p)
	if err != nil {
		return err
	}
	s.set(fmt.Sprintf(KeyProposalBody, p.Index), val)
	return nil
}

func (s *State) AppendProposal(proposal *types.Proposal) error {
	if proposal.Index != s.proposalCount {
		return fmt.Errorf("append proposal %d at count %d: %w", proposal.Index, s.proposalCount, registry.ErrNotFound)
	}
	if err := s.putProposal(proposal); err != nil {
		return err
	}
	s.proposalCount += 1
	s.set(KeyProposalIndex, new(big.Int).SetUint64(s.proposalCount).Bytes())
	return nil
}

func (s *State) UpdateProposal(proposal *types.Proposal) error {
	if proposal.Index >= s.proposalCount {
		return registry.ErrNotFound
	}
	return s.putProposal(proposal)
}

func (s *State) HasVoted(id uint64, voter string) (bool, error) {
	return s.has(fmt.Sprintf(KeyVoterFlag, id, voter))
}

func (s *State) AddVoter(id uint64, seq uint64, voter string) error {
	if id >= s.proposalCount {
		return registry.ErrNotFound
	}
	s.set(fmt.Sprintf(KeyVoterFlag, id, voter), []byte{1})
	s.set(fmt.Sprintf(KeyVoterSeq, id, seq), []byte(voter))
	return nil
}

// Voters walks the sequence keys up to the stored vote count.
func (s *State) Voters(id uint64) ([]string, error) {
	proposal, err := s.Proposal(id)
	if err != nil {
		return nil, err
	}
	if proposal == nil {
		return nil, registry.ErrNotFound
	}
	voters := make([]string, 0, proposal.VoteCount)
	for seq := uint64(0); seq < proposal.VoteCount; seq++ {
		val, err := s.get(fmt.Sprintf(KeyVoterSeq, id, seq))
		if err != nil {
			return nil, err
		}
		if val == nil {
			return nil, fmt.Errorf("%w: voter %d of proposal %d", ErrCorruptedRecord, seq, id)
		}
		voters = append(voters, string(val))
	}
	return voters, nil
}

// FindAccount returns nil when the address never sent a successful tx.
func (s *State) FindAccount(addr string) (acnt *Account, err error) {
	val, err := s.get(fmt.Sprintf(KeyAccountBody, addr))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, nil
	}
	return decodeAccount(val)
}

func (s *State) putAccount(acnt *Account) error {
	val, err := encodeAccount(acnt)
	if err != nil {
		return err
	}
	s.set(fmt.Sprintf(KeyAccountBody, acnt.Address), val)
	return nil
}

// Nonce is the next nonce expected from addr.
func (s *State) Nonce(addr string) (uint64, error) {
	acnt, err := s.FindAccount(addr)
	if err != nil {
		return 0, err
	}
	if acnt == nil {
		return 0, nil
	}
	return acnt.Nonce, nil
}

func (s *State) IncNonce(addr string) error {
	acnt, err := s.FindAccount(addr)
	if err != nil {
		return err
	}
	if acnt == nil {
		acnt = &Account{Address: addr}
	}
	acnt.Nonce += 1
	return s.putAccount(acnt)
}

// Verify recovers the sender of btx and checks its nonce. The mempool
// passes allowNonceGap so queued txs of one sender are accepted.
func (s *State) Verify(btx *tx.Tx, allowNonceGap bool) (sender string, err error) {
	sender, err = btx.Sender(s.header.ChainId)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTxSigInvalid, err)
	}
	nonce, err := s.Nonce(sender)
	if err != nil {
		return "", err
	}
	if !(nonce == btx.Nonce || (allowNonceGap && nonce < btx.Nonce)) {
		return "", fmt.Errorf("%w: expected %d got %d", ErrTxNonceInvalid, nonce, btx.Nonce)
	}
	return sender, nil
}
