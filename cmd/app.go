package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"tokenflight/config"
	"tokenflight/pkg/client"
	"tokenflight/pkg/logging"
	"tokenflight/pkg/swap"
	"tokenflight/pkg/swaperr"
	"tokenflight/pkg/token"
	"tokenflight/pkg/wallet"
)

// app bundles what every command needs: configuration, the API client
// and the token resolver
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	api        *client.Client
	resolver   *token.Resolver
	jsonOutput bool
	verbose    bool
	closers    []func() error
}

func newApp(cmd *cobra.Command) (*app, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Log
	if verbose {
		logCfg.Level = "debug"
	}
	logger := logging.Setup("tokenflight", logCfg, nil)

	a := &app{
		cfg:        cfg,
		logger:     logger,
		jsonOutput: jsonOutput,
		verbose:    verbose,
	}

	registry := prometheus.NewRegistry()
	if metricsAddr != "" {
		a.serveMetrics(registry)
	}

	a.api, err = client.New(cfg.APIEndpoint,
		client.WithAPIKey(cfg.APIKey),
		client.WithDefaultTimeout(cfg.RequestTimeout),
		client.WithStreamTimeout(cfg.StreamTimeout),
		client.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		client.WithMetrics(client.NewMetrics(registry)),
		client.WithLogger(logger),
	)
	if err != nil {
		a.close()
		return nil, err
	}

	store, closeStore, err := openStore(cfg.Cache)
	if err != nil {
		a.close()
		return nil, err
	}
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}
	a.resolver = token.NewResolver(store, token.WithTTL(cfg.Cache.TTL), token.WithLogger(logger))

	return a, nil
}

func (a *app) serveMetrics(registry *prometheus.Registry) {
	srv := &http.Server{
		Addr:    metricsAddr,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", "addr", metricsAddr, "error", err)
		}
	}()
	a.closers = append(a.closers, srv.Close)
	a.logger.Debug("serving metrics", "addr", metricsAddr)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("cleanup failed", "error", err)
		}
	}
	a.closers = nil
}

// openStore opens the configured token metadata store
func openStore(cfg config.CacheConfig) (token.Store, func() error, error) {
	switch cfg.Backend {
	case config.CacheMemory:
		return token.NewMemoryStore(), nil, nil
	case config.CacheLevelDB:
		store, err := token.NewLevelDBStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		store, err := token.NewFileStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
}

// resolveToken parses ref and looks up its metadata
func (a *app) resolveToken(ctx context.Context, ref string) (token.ResolvedToken, error) {
	target, err := token.Parse(ref)
	if err != nil {
		return token.ResolvedToken{}, err
	}
	resolved, err := a.resolver.ResolveTarget(ctx, target, a.api)
	if err != nil {
		return token.ResolvedToken{}, err
	}
	if !resolved.Resolved() {
		a.logger.Warn("token metadata not found", "token", target.String())
	}
	return resolved, nil
}

func (a *app) newEngine() *swap.Engine {
	return swap.NewEngine(a.api,
		swap.WithStreaming(a.cfg.Streaming),
		swap.WithSlippageBps(a.cfg.SlippageBps),
		swap.WithLogger(a.logger),
	)
}

// newWallet creates the wallet able to fund a deposit of source
func (a *app) newWallet(source token.Target) (wallet.Wallet, error) {
	if source.IsSolana() {
		return wallet.NewSolanaWallet(a.cfg.Solana, wallet.WithSolanaLogger(a.logger))
	}

	evmCfg := a.cfg.EVM
	if evmCfg.ChainID == 0 {
		evmCfg.ChainID = source.ChainID
	}
	if evmCfg.ChainID != source.ChainID {
		return nil, swaperr.Newf(swaperr.InvalidConfig,
			"evm wallet is configured for chain %d but the source token is on chain %d", evmCfg.ChainID, source.ChainID).
			WithDetail("key", "evm.chain_id")
	}
	return wallet.NewEVMWallet(evmCfg, wallet.WithEVMLogger(a.logger))
}

func mustApp(cmd *cobra.Command) *app {
	a, err := newApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	return a
}
