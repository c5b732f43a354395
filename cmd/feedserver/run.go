package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zecdev/chainfeed/internal/chainclient"
	"github.com/zecdev/chainfeed/internal/chainclient/zcashd"
	"github.com/zecdev/chainfeed/internal/chainclient/zindex"
	"github.com/zecdev/chainfeed/pkg/feed"
	"github.com/zecdev/chainfeed/pkg/metrics"
	"github.com/zecdev/chainfeed/pkg/scheduler"
	"github.com/zecdev/chainfeed/pkg/txparser"
	"github.com/zecdev/chainfeed/pkg/types"
	"github.com/zecdev/chainfeed/pkg/utils"
)

const (
	blockFeedName       = "blocks"
	transactionFeedName = "transactions"
	shutdownTimeout     = 5 * time.Second
)

func run(c *cli.Context) error {
	// Build configuration from CLI flags
	cfg, err := buildConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	sugar, err := utils.NewSugaredLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"verbose", cfg.Verbose,
		"network", cfg.Network,
		"pollInterval", cfg.PollInterval,
		"blockWindowSize", cfg.BlockWindowSize,
		"txWindowSize", cfg.TxWindowSize,
		"txType", filterLabel(cfg.TxType),
		"initRetryInterval", cfg.InitRetryInterval,
		"staleWatchdogInterval", cfg.StaleWatchdogInterval,
		"staleWatchdogMaxAge", cfg.StaleWatchdogMaxAge,
		"zcashdURL", cfg.Zcashd.URL,
		"zcashdTimeout", cfg.Zcashd.Timeout,
		"zindexURL", cfg.Zindex.URL,
		"zindexTimeout", cfg.Zindex.Timeout,
		"apiHost", cfg.APIHost,
		"apiPort", cfg.APIPort,
		"metricsHost", cfg.MetricsHost,
		"metricsPort", cfg.MetricsPort,
		"environment", cfg.Environment,
		"region", cfg.Region,
		"cloudProvider", cfg.CloudProvider,
	)

	// Initialize Prometheus metrics with labels for multi-instance filtering
	registry := prometheus.NewRegistry()
	m, err := metrics.NewWithLabels(registry, metrics.Labels{
		Network:       cfg.Network,
		Environment:   cfg.Environment,
		Region:        cfg.Region,
		CloudProvider: cfg.CloudProvider,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	nodeClient, err := zcashd.New(cfg.Zcashd, zcashd.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("failed to create zcashd client: %w", err)
	}
	indexClient, err := zindex.New(cfg.Zindex, zindex.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("failed to create zindex client: %w", err)
	}

	blocks, err := newBlockFeed(sugar, nodeClient, cfg.BlockWindowSize, m)
	if err != nil {
		return fmt.Errorf("failed to create block feed: %w", err)
	}
	defer blocks.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	txs, err := feed.NewSession(gctx, sugar, transactionFactory(sugar, indexClient, cfg.TxWindowSize, m), cfg.PollInterval)
	if err != nil {
		return fmt.Errorf("failed to create transaction feed: %w", err)
	}
	defer txs.Close()

	// Start metrics server; ready once both feeds hold a window
	metricsServer := metrics.NewServer(cfg.MetricsAddr(), registry, func() bool {
		return blocks.State().Phase.Ready() && txs.State().Phase.Ready()
	})
	metricsErrCh := metricsServer.Start()
	if cfg.MetricsHost == "" {
		sugar.Infof("metrics server listening on http://0.0.0.0:%d/metrics", cfg.MetricsPort)
	} else {
		sugar.Infof("metrics server listening on http://%s/metrics", cfg.MetricsAddr())
	}

	app := newApp(cfg.CORSOrigins)
	NewServer(sugar, cfg.Network, blocks, txs, cfg.TxType).SetupRoutes(app)

	g.Go(func() error {
		err := initializeWithRetry(gctx, sugar, blockFeedName, cfg.InitRetryInterval, blocks.Initialize)
		if err != nil {
			return err
		}
		return scheduler.Start(gctx, sugar, blockFeedName, func(ctx context.Context) {
			blocks.PollHead(ctx)
		}, cfg.PollInterval)
	})
	g.Go(func() error {
		// The session polls on its own once initialized.
		return initializeWithRetry(gctx, sugar, transactionFeedName, cfg.InitRetryInterval, func(ctx context.Context) error {
			_, err := txs.Resume(ctx, cfg.TxType)
			return err
		})
	})
	g.Go(func() error {
		sugar.Infof("api server listening on http://%s", cfg.APIAddr())
		if err := app.Listen(cfg.APIAddr()); err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sugar.Info("shutting down api server")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			sugar.Warnw("api server shutdown error", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-metricsErrCh:
			if err != nil {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		}
	})

	g.Go(func() error {
		logUpdates(gctx, sugar, blocks)
		return nil
	})
	g.Go(func() error {
		feed.StartStalenessWatchdog(gctx, sugar, blocks, cfg.StaleWatchdogInterval, cfg.StaleWatchdogMaxAge)
		return nil
	})
	g.Go(func() error {
		feed.StartStalenessWatchdog(gctx, sugar, txs, cfg.StaleWatchdogInterval, cfg.StaleWatchdogMaxAge)
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		sugar.Infow("exiting due to context cancellation")
	} else if err != nil {
		sugar.Errorw("run failed", "error", err)
	}

	// Gracefully shutdown metrics server
	sugar.Info("shutting down metrics server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("metrics server shutdown error", "error", err)
	}

	sugar.Info("shutdown complete")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newBlockFeed(
	log *zap.SugaredLogger,
	client chainclient.BlockClient,
	windowSize int,
	m *metrics.Metrics,
) (*feed.Engine[*types.Block], error) {
	strategy, err := feed.NewDenseStrategy(client)
	if err != nil {
		return nil, err
	}
	return feed.NewEngine[*types.Block](log, blockFeedName, strategy,
		feed.WithWindowSize(windowSize),
		feed.WithMetrics(m),
	)
}

// transactionFactory builds a fresh transaction engine for a type filter. The
// empty filter selects every type.
func transactionFactory(
	log *zap.SugaredLogger,
	client chainclient.TransactionClient,
	windowSize int,
	m *metrics.Metrics,
) feed.Factory[*types.Transaction] {
	return func(filter string) (*feed.Engine[*types.Transaction], error) {
		var kind txparser.Kind
		if filter != "" {
			k, err := txparser.ParseKind(filter)
			if err != nil {
				return nil, err
			}
			kind = k
		}
		strategy, err := feed.NewOffsetStrategy(client, kind)
		if err != nil {
			return nil, err
		}
		return feed.NewEngine[*types.Transaction](log, transactionFeedName, strategy,
			feed.WithWindowSize(windowSize),
			feed.WithMetrics(m),
		)
	}
}

// initializeWithRetry calls initialize until it succeeds or ctx is done. A feed that
// was closed in the meantime ends the loop without error.
func initializeWithRetry(
	ctx context.Context,
	log *zap.SugaredLogger,
	name string,
	interval time.Duration,
	initialize func(context.Context) error,
) error {
	for {
		err := initialize(ctx)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, feed.ErrClosed):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		}
		log.Warnw("feed initialization failed, retrying", "feed", name, "error", err, "retryIn", interval)

		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// logUpdates logs the head of the block feed whenever new blocks are merged.
func logUpdates(ctx context.Context, log *zap.SugaredLogger, e *feed.Engine[*types.Block]) {
	updates := e.Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			snap := e.Snapshot()
			var head string
			if len(snap.Items) > 0 {
				head = utils.ShortHash(snap.Items[0].Key, 8)
			}
			log.Debugw("feed updated",
				"feed", snap.State.Feed,
				"highest", snap.State.Boundaries.Highest,
				"hash", head,
				"items", snap.State.Len,
			)
		}
	}
}
