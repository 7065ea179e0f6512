package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calehh/pvote/crypto"
	"github.com/calehh/pvote/types"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitThenLoadConfig(t *testing.T) {
	home := t.TempDir()
	proposals := filepath.Join(t.TempDir(), "proposals.json")
	require.NoError(t, os.WriteFile(proposals, []byte(`[{"name":"Proposal 1","description":"seeded","quorum":2}]`), 0o600))

	require.NoError(t, initCmd.Flags().Set(types.FlagHome, home))
	require.NoError(t, initCmd.Flags().Set(types.FlagChainID, "pvote-test"))
	require.NoError(t, initCmd.Flags().Set(flagGenesisProposals, proposals))
	require.NoError(t, initCmd.Flags().Set("indexer", "true"))
	require.NoError(t, initRun(initCmd, nil))

	cfg, err := loadConfig(home)
	require.NoError(t, err)
	assert.Equal(t, home, cfg.RootDir)
	assert.Equal(t, home, cfg.App.Home)
	assert.True(t, cfg.App.IndexerEnabled)

	gen, err := cmttypes.GenesisDocFromFile(cfg.GenesisFile())
	require.NoError(t, err)
	assert.Equal(t, "pvote-test", gen.ChainID)
	require.Len(t, gen.Validators, 1)
	gs, err := types.ParseGenesisState(gen.AppState)
	require.NoError(t, err)
	require.Len(t, gs.Proposals, 1)
	assert.Equal(t, "Proposal 1", gs.Proposals[0].Name)

	// a second init must not replace the genesis file
	require.NoError(t, initCmd.Flags().Set(types.FlagChainID, "other"))
	require.Error(t, initRun(initCmd, nil))
}

func TestLoadConfigWithoutInit(t *testing.T) {
	_, err := loadConfig(t.TempDir())
	require.Error(t, err)
}

func TestReadGenesisProposals(t *testing.T) {
	dir := t.TempDir()
	specs := map[string]struct {
		content string
		expErr  bool
	}{
		"valid":         {content: `[{"name":"p","quorum":1}]`},
		"zero quorum":   {content: `[{"name":"p","quorum":0}]`, expErr: true},
		"not a list":    {content: `{"name":"p"}`, expErr: true},
		"empty list ok": {content: `[]`},
	}
	for msg, spec := range specs {
		t.Run(msg, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(msg, " ", "_")+".json")
			require.NoError(t, os.WriteFile(path, []byte(spec.content), 0o600))
			dat, err := readGenesisProposals(path)
			if err == nil {
				_, err = types.ParseGenesisState(dat)
			}
			if spec.expErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestKeysNewAndShow(t *testing.T) {
	keysArgs.Key = filepath.Join(t.TempDir(), "key")
	var out bytes.Buffer
	keysNewCmd.SetOut(&out)
	require.NoError(t, keysNewCmd.RunE(keysNewCmd, nil))

	key, err := crypto.LoadKeyFile(keysArgs.Key)
	require.NoError(t, err)
	assert.Contains(t, out.String(), key.Address())

	// refuses to replace an existing key
	require.Error(t, keysNewCmd.RunE(keysNewCmd, nil))

	addr, err := addressArg(nil, keysArgs.Key)
	require.NoError(t, err)
	assert.Equal(t, key.Address(), addr)
	addr, err = addressArg([]string{"0xabc"}, keysArgs.Key)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", addr)
}
