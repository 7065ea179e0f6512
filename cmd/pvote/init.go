package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	app_config "github.com/calehh/pvote/config"
	"github.com/calehh/pvote/types"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/spf13/cobra"
)

const flagGenesisProposals = "genesis-proposals"

type printInfo struct {
	Moniker    string          `json:"moniker" yaml:"moniker"`
	ChainID    string          `json:"chain_id" yaml:"chain_id"`
	NodeID     string          `json:"node_id" yaml:"node_id"`
	AppMessage json.RawMessage `json:"app_message" yaml:"app_message"`
}

func displayInfo(info printInfo) error {
	out, err := json.MarshalIndent(info, "", " ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(os.Stderr, "%s\n", out)

	return err
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize private validator, p2p, genesis, and application configuration files",
	Long:  `Initialize validators's and node's configuration files.`,
	Args:  cobra.ExactArgs(0),
	RunE:  initRun,
}

func init() {
	initCmd.Flags().BoolP(types.FlagOverwrite, "o", false, "overwrite the genesis.json file")
	initCmd.Flags().String(types.FlagChainID, "", "genesis file chain-id, if left blank will be randomly created")
	initCmd.Flags().String(types.FlagHome, "", "node home directory")
	initCmd.Flags().String(flagGenesisProposals, "", "json file with the proposals seeded at genesis")
	initCmd.Flags().Bool("indexer", false, "enable the event indexer")
}

func readGenesisProposals(path string) (json.RawMessage, error) {
	if path == "" {
		return nil, nil
	}
	dat, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var proposals []types.GenesisProposal
	if err := json.Unmarshal(dat, &proposals); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return json.Marshal(types.GenesisState{Proposals: proposals})
}

func initRun(cmd *cobra.Command, args []string) error {
	home, _ := cmd.Flags().GetString(types.FlagHome)
	chainID, _ := cmd.Flags().GetString(types.FlagChainID)
	overwrite, _ := cmd.Flags().GetBool(types.FlagOverwrite)
	proposalsFile, _ := cmd.Flags().GetString(flagGenesisProposals)
	withIndexer, _ := cmd.Flags().GetBool("indexer")

	if chainID == "" {
		chainID = fmt.Sprintf("test-chain-%v", rand.Uint64())
	}
	appState, err := readGenesisProposals(proposalsFile)
	if err != nil {
		return err
	}

	appConfig := app_config.NewConfig(home)
	appConfig.App.IndexerEnabled = withIndexer
	genFile := appConfig.GenesisFile()
	if _, err := os.Stat(genFile); err == nil && !overwrite {
		return fmt.Errorf("genesis file %s already exists, use --%s to replace it", genFile, types.FlagOverwrite)
	}

	nodeID, pk, err := app_config.InitializeNodeValidatorFiles(appConfig, nil)
	if err != nil {
		return err
	}
	vals := []types.GenesisValidator{{Address: pk.Address(), PubKey: pk, Power: types.DefaultPower}}

	appGenesis := &types.GenesisDoc{
		GenesisTime:     time.Now(),
		ChainID:         chainID,
		ConsensusParams: cmttypes.DefaultConsensusParams(),
		InitialHeight:   1,
		Validators:      vals,
		AppState:        appState,
	}
	if err = types.ExportGenesisFile(appGenesis, genFile); err != nil {
		return fmt.Errorf("Failed to export genesis file %v", err)
	}
	app_config.WriteConfigFile(filepath.Join(appConfig.RootDir, "config", "config.toml"), appConfig)
	return displayInfo(printInfo{
		Moniker:    appConfig.Moniker,
		ChainID:    chainID,
		NodeID:     nodeID,
		AppMessage: appGenesis.AppState,
	})
}
