package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteConfigFileRoundTrip(t *testing.T) {
	home := t.TempDir()
	cfg := NewConfig(home)
	cfg.Moniker = "registry-node"
	cfg.App.IndexerEnabled = true
	cfg.App.IndexerListenAddr = "0.0.0.0:9999"
	cfg.App.IndexerInterval = 5 * time.Second
	cfg.App.PrometheusNamespace = "registry"

	path := filepath.Join(home, "config", "config.toml")
	WriteConfigFile(path, cfg)

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	got := NewConfig(home)
	require.NoError(t, v.Unmarshal(got))

	assert.Equal(t, "registry-node", got.Moniker)
	assert.Equal(t, cfg.Consensus.TimeoutCommit, got.Consensus.TimeoutCommit)
	assert.True(t, got.App.IndexerEnabled)
	assert.Equal(t, "0.0.0.0:9999", got.App.IndexerListenAddr)
	assert.Equal(t, 5*time.Second, got.App.IndexerInterval)
	assert.Equal(t, "data/indexer.db", got.App.IndexerDB)
	assert.Equal(t, "registry", got.App.PrometheusNamespace)
	require.NoError(t, got.ValidateBasic())
}

func TestAppConfigValidateBasic(t *testing.T) {
	specs := map[string]struct {
		mutate func(c *AppConfig)
		expErr bool
	}{
		"defaults": {
			mutate: func(c *AppConfig) {},
		},
		"indexer without listen address": {
			mutate: func(c *AppConfig) {
				c.IndexerEnabled = true
				c.IndexerListenAddr = ""
			},
			expErr: true,
		},
		"disabled indexer without listen address": {
			mutate: func(c *AppConfig) { c.IndexerListenAddr = "" },
		},
		"negative interval": {
			mutate: func(c *AppConfig) { c.IndexerInterval = -time.Second },
			expErr: true,
		},
	}
	for msg, spec := range specs {
		t.Run(msg, func(t *testing.T) {
			c := NewAppConfig(t.TempDir())
			spec.mutate(c)
			err := c.ValidateBasic()
			if spec.expErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestIndexerDBPath(t *testing.T) {
	c := NewAppConfig("/srv/pvote")
	assert.Equal(t, "/srv/pvote/data/indexer.db", c.IndexerDBPath())
	c.IndexerDB = "/var/lib/indexer.db"
	assert.Equal(t, "/var/lib/indexer.db", c.IndexerDBPath())
	assert.Equal(t, "/srv/pvote/data", c.DataDir())
}
