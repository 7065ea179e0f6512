package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	cmttypes "github.com/cometbft/cometbft/types"
)

// GenesisState is the app_state section of the genesis file.
type GenesisState struct {
	Proposals []GenesisProposal `json:"proposals"`
}

type GenesisProposal struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Quorum      uint64 `json:"quorum"`
}

func (gs GenesisState) Validate() error {
	for i, p := range gs.Proposals {
		if p.Quorum == 0 {
			return fmt.Errorf("genesis proposal %d: quorum must be positive", i)
		}
	}
	return nil
}

// ParseGenesisState decodes app_state bytes; empty input yields an empty state.
func ParseGenesisState(appState []byte) (gs GenesisState, err error) {
	if len(appState) == 0 {
		return gs, nil
	}
	err = json.Unmarshal(appState, &gs)
	if err != nil {
		return gs, fmt.Errorf("decode app state: %w", err)
	}
	err = gs.Validate()
	return
}

type GenesisValidator struct {
	Address crypto.Address `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	Power   int64          `json:"power"`
	Name    string         `json:"name"`
}

// GenesisDoc defines the initial conditions for a CometBFT blockchain, in particular its validator set.
type GenesisDoc struct {
	GenesisTime     time.Time                 `json:"genesis_time"`
	ChainID         string                    `json:"chain_id"`
	InitialHeight   int64                     `json:"initial_height"`
	ConsensusParams *cmttypes.ConsensusParams `json:"consensus_params,omitempty"`
	Validators      []GenesisValidator        `json:"validators"`
	AppHash         []byte                    `json:"app_hash"`
	AppState        json.RawMessage           `json:"app_state"`
}

// SaveAs is a utility method for saving GenensisDoc as a JSON file.
func (genDoc *GenesisDoc) SaveAs(file string) error {
	genDocBytes, err := cmtjson.MarshalIndent(genDoc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, genDocBytes, 0o600)
}

func (ag *GenesisDoc) ValidateAndComplete() error {
	if ag.ChainID == "" {
		return errors.New("genesis doc must include non-empty chain_id")
	}

	if ag.InitialHeight < 0 {
		return fmt.Errorf("initial_height cannot be negative (got %v)", ag.InitialHeight)
	}

	if ag.InitialHeight == 0 {
		ag.InitialHeight = 1
	}

	if ag.GenesisTime.IsZero() {
		ag.GenesisTime = time.Now().Round(0).UTC()
	}

	if len(ag.AppState) == 0 {
		ag.AppState = json.RawMessage(`{"proposals":[]}`)
	}
	if _, err := ParseGenesisState(ag.AppState); err != nil {
		return err
	}

	return nil
}

func ExportGenesisFile(genesis *GenesisDoc, genFile string) error {
	if err := genesis.ValidateAndComplete(); err != nil {
		return err
	}
	return genesis.SaveAs(genFile)
}

const ModuleName = "pvote"
const DefaultPower = 1000

const (
	FlagHome      = "home"
	FlagChainID   = "chain-id"
	FlagOverwrite = "overwrite"
)

// GenesisProposer is recorded as the proposer of proposals seeded from app_state.
const GenesisProposer = "genesis"

// AppVersion is reported in Info and stored in the state manifest.
const AppVersion uint64 = 1
