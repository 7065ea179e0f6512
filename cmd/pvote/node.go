package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/calehh/pvote/app"
	app_config "github.com/calehh/pvote/config"
	"github.com/calehh/pvote/indexer"
	cmtconfig "github.com/cometbft/cometbft/config"
	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	nm "github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var homeDir string

var pvoteCmd = &cobra.Command{
	Use:   "pvote",
	Short: "pvote runs a proposal and voting registry chain",
	Long: `pvote keeps a registry of proposals on a CometBFT chain.
Anyone can create a proposal with a quorum; every address votes at most once
and a proposal is accepted once its votes reach the quorum.`,
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd, args)
	},
}

func init() {
	pvoteCmd.Flags().StringVarP(&homeDir, "homedir", "d", "", "home directory")
}

// loadConfig reads config/config.toml under home on top of the defaults.
func loadConfig(home string) (*app_config.Config, error) {
	appConfig := app_config.NewConfig(home)
	v := viper.New()
	v.SetConfigFile(filepath.Join(appConfig.RootDir, "config", "config.toml"))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := v.Unmarshal(appConfig); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	appConfig.SetRoot(appConfig.RootDir)
	appConfig.App.Home = appConfig.RootDir
	if err := appConfig.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid configuration data: %w", err)
	}
	return appConfig, nil
}

func run(cmd *cobra.Command, args []string) {
	if homeDir == "" {
		homeDir = app_config.DefaultHome()
	}
	appConfig, err := loadConfig(homeDir)
	if err != nil {
		log.Fatal(err)
	}

	pv := privval.LoadFilePV(
		appConfig.PrivValidatorKeyFile(),
		appConfig.PrivValidatorStateFile(),
	)

	nodeKey, err := p2p.LoadNodeKey(appConfig.NodeKeyFile())
	if err != nil {
		log.Fatalf("failed to load node's key: %v", err)
	}

	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	logger, err = cmtflags.ParseLogLevel(appConfig.LogLevel, logger, cmtconfig.DefaultLogLevel)
	if err != nil {
		log.Fatalf("failed to parse log level: %v", err)
	}

	// CometBFT serves the default registry when instrumentation is enabled.
	metrics := app.NewMetrics(appConfig.App.PrometheusNamespace, prometheus.DefaultRegisterer)
	pvApp, err := app.NewPVoteApp(appConfig.App, logger, metrics)
	if err != nil {
		log.Fatalf("new App err:%v", err)
	}

	node, err := nm.NewNode(
		appConfig.Config,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(pvApp),
		nm.DefaultGenesisDocProviderFunc(appConfig.Config),
		cmtconfig.DefaultDBProvider,
		nm.DefaultMetricsProvider(appConfig.Instrumentation),
		logger,
	)
	if err != nil {
		log.Fatalf("Creating node: %v", err)
	}

	err = node.Start()
	if err != nil {
		log.Fatalf("start comet node err %s", err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	var service *indexer.Service
	if appConfig.App.IndexerEnabled {
		service, err = startIndexer(ctx, appConfig, node.GenesisDoc().ChainID, logger)
		if err != nil {
			log.Fatalf("start indexer err %s", err.Error())
		}
	}

	defer func() {
		log.Println("shut down...")
		cancel()
		done := make(chan struct{})
		go func() {
			defer close(done)
			if service != nil {
				sctx, scancel := context.WithTimeout(context.Background(), time.Second*3)
				_ = service.Stop(sctx)
				scancel()
			}
			err = node.Stop()
			if err != nil {
				log.Fatalf("stop comet node err %s", err.Error())
			}
			node.Wait()
			pvApp.Stop()
		}()
		timer := time.NewTimer(time.Second * 10)
		select {
		case <-timer.C:
			os.Exit(1)
		case <-done:
			return
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

func startIndexer(ctx context.Context, appConfig *app_config.Config, chainId string, logger cmtlog.Logger) (*indexer.Service, error) {
	rpcUrl, err := url.Parse(appConfig.RPC.ListenAddress)
	if err != nil {
		return nil, err
	}
	rpcUrl.Scheme = "http"
	idx, err := indexer.NewChainIndexer(logger, appConfig.App.IndexerDBPath(), rpcUrl.String(), chainId, appConfig.App.IndexerInterval)
	if err != nil {
		return nil, err
	}
	go idx.Start(ctx)
	service := indexer.NewService(appConfig.App.IndexerListenAddr, idx)
	go func() {
		if err := service.Start(); err != nil {
			logger.Error("indexer service stopped", "err", err)
		}
	}()
	return service, nil
}
