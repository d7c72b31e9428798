package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lazyview/internal/chain"
	"lazyview/internal/config"
	"lazyview/internal/diskcache"
	"lazyview/internal/execution"
	"lazyview/internal/resolver"
	"lazyview/internal/storage"
	"lazyview/internal/storage/postgres"
)

// env is the wiring shared by all commands.
type env struct {
	ctx     context.Context
	cfg     config.Config
	logger  *zap.Logger
	logPath string
	disk    ethdb.KeyValueStore
	closers []func()
}

func setup(cmd *cobra.Command) (*env, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, logPath, err := newLogger(cfg.LogLevel, cfg.LogFolder)
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	e := &env{ctx: ctx, cfg: cfg, logger: logger, logPath: logPath}
	e.closers = append(e.closers, stop, func() { _ = logger.Sync() })

	disk, err := diskcache.Open(cfg.CacheFolder)
	if err != nil {
		// another process may hold the store
		logger.Warn("module disk cache unavailable, using memory only", zap.Error(err))
		disk = diskcache.OpenMemory()
	}
	e.disk = disk
	e.closers = append(e.closers, func() { _ = disk.Close() })

	logger.Debug("config loaded",
		zap.String("network", cfg.Network),
		zap.String("cache", diskcache.Path(cfg.CacheFolder)),
		zap.Bool("enable_module_caching", cfg.EnableModuleCaching),
		zap.String("log_path", logPath),
	)
	return e, nil
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// client connects to the node of network.
func (e *env) client(network string) (*chain.Client, error) {
	url, err := e.cfg.NodeURL(network)
	if err != nil {
		return nil, err
	}
	client, err := chain.NewClient(url, e.cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("node client: %w", err)
	}
	e.closers = append(e.closers, client.Close)
	chainID, err := client.ChainID(e.ctx)
	if err != nil {
		e.logger.Warn("node info unavailable", zap.String("network", network), zap.Error(err))
	}
	e.logger.Info("node client ready",
		zap.String("network", network),
		zap.String("url", url),
		zap.Uint8("chain_id", chainID),
	)
	return client, nil
}

func (e *env) resolver(network string, client *chain.Client) *resolver.Resolver {
	return resolver.New(client, e.disk, resolver.Options{
		Network:             network,
		EnableModuleCaching: e.cfg.EnableModuleCaching,
		Logger:              e.logger.With(zap.String("network", network)),
	})
}

func (e *env) runner(network string) (*execution.Runner, error) {
	client, err := e.client(network)
	if err != nil {
		return nil, err
	}
	return execution.NewRunner(
		execution.RunConfig{LogPath: e.logPath},
		execution.NewNodeEngine(client),
		client,
		e.resolver(network, client),
		e.logger,
	), nil
}

// sink builds the optional call record sinks; nil when none is configured.
func (e *env) sink() (storage.Storage, error) {
	var sinks storage.Multi
	if e.cfg.Out != "" {
		sinks = append(sinks, storage.NewCallLog(e.cfg.Out))
	}
	if e.cfg.PGDSN != "" {
		store, err := postgres.NewStore(e.ctx, e.cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		e.closers = append(e.closers, store.Close)
		if err := store.EnsureSchema(e.ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, store)
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}
