package state

import (
	"sync"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	dbm "github.com/cosmos/iavl/db"
	"github.com/ethereum/go-ethereum/common"
)

// StateDB owns the iavl tree and the last committed State.
type StateDB struct {
	mtx sync.RWMutex

	dir    string
	logger cmtlog.Logger
	db     *iavl.MutableTree

	state *State
}

func NewStateDB(dir string, logger cmtlog.Logger) (db *StateDB, err error) {
	ldb, err := dbm.NewDB("pvote", "goleveldb", dir)
	if err != nil {
		return nil, err
	}
	return newStateDB(ldb, dir, logger)
}

// NewMemStateDB keeps the tree in memory; used by tests.
func NewMemStateDB(logger cmtlog.Logger) (*StateDB, error) {
	return newStateDB(dbm.NewMemDB(), "", logger)
}

func newStateDB(ldb dbm.DB, dir string, logger cmtlog.Logger) (db *StateDB, err error) {
	logger = logger.With("module", "statedb")
	tdb := iavl.NewMutableTree(ldb, 128, true, Cometbft2CosmosLogger(logger))
	version, err := tdb.Load()
	if err != nil {
		return nil, err
	}
	logger.Info("load db success", "version", version)
	st := newState(tdb, logger)
	st.dbVer = version
	err = st.load()
	if err != nil {
		logger.Error("statedb load fail", "err", err)
		return nil, err
	}
	db = &StateDB{
		dir:    dir,
		logger: logger,
		db:     tdb,
		state:  st,
	}
	return
}

func (db *StateDB) Close() (err error) {
	err = db.db.Close()
	return
}

func (db *StateDB) Header() (header *StateHeader) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	header = db.state.Header().Clone()
	return
}

func (db *StateDB) NewState() (st *State) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	st = db.state.nextState()
	return
}

func (db *StateDB) SetState(st *State) (hash common.Hash, err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	hash, err = st.save()
	if err != nil {
		return
	}
	db.state = st
	return
}

// QueryState is a read-only State over the last saved version. Before the
// first commit it is an empty State.
func (db *StateDB) QueryState() (*State, error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	ver := db.state.dbVer
	if ver == 0 {
		st := newReadOnlyState(emptyTree{}, 0, db.logger)
		st.header = db.state.header.Clone()
		return st, nil
	}
	itree, err := db.db.GetImmutable(ver)
	if err != nil {
		return nil, err
	}
	st := newReadOnlyState(itree, ver, db.logger)
	err = st.load()
	if err != nil {
		return nil, err
	}
	st.header = db.state.header.Clone()
	return st, nil
}

func (db *StateDB) GetAccount(addr string) (acnt *Account, height uint64, err error) {
	st, err := db.QueryState()
	if err != nil {
		return nil, 0, err
	}
	acnt, err = st.FindAccount(addr)
	height = st.Height()
	return
}

type emptyTree struct{}

func (emptyTree) Get([]byte) ([]byte, error) { return nil, nil }

func (emptyTree) Has([]byte) (bool, error) { return false, nil }
