// ====================================
// File: internal/bot/runner.go
// ====================================
// Package bot assembles the simulation from configuration and runs it
// until shutdown.
package bot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/solsniper/simbot/internal/config"
	"github.com/solsniper/simbot/internal/decision"
	"github.com/solsniper/simbot/internal/engine"
	"github.com/solsniper/simbot/internal/events"
	"github.com/solsniper/simbot/internal/logger"
	"github.com/solsniper/simbot/internal/marketdata"
	"github.com/solsniper/simbot/internal/portfolio"
	"github.com/solsniper/simbot/internal/position"
	"github.com/solsniper/simbot/internal/pricing"
	"github.com/solsniper/simbot/internal/storage"
	"github.com/solsniper/simbot/internal/storage/postgres"
	"github.com/solsniper/simbot/internal/strategy"
)

// Runner owns the lifecycle of every component.
type Runner struct {
	log *logger.Logger
	cfg *config.Config

	bus       *events.Bus
	ledger    *portfolio.Ledger
	engine    *engine.Engine
	positions *position.Manager
	client    *marketdata.Client
	stream    *marketdata.PriceStream
	recorder  *storage.Recorder
	feeder    *Feeder

	shutdownDone chan struct{}
}

// NewRunner creates an uninitialized runner.
func NewRunner(log *logger.Logger) *Runner {
	return &Runner{
		log:          log,
		shutdownDone: make(chan struct{}),
	}
}

// Initialize loads configuration and wires every component together.
// configPath may be empty to run on defaults and environment variables.
func (r *Runner) Initialize(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	r.cfg = cfg

	// Rebuild the logger now that the configured sink and level are known;
	// the bootstrap logger only covered startup.
	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}
	r.log = log

	zlog := r.log.Logger

	r.bus = events.NewBus(zlog, 1024)
	r.ledger = portfolio.NewLedger(cfg.StartingBalanceSOL, zlog)

	catalog := strategy.NewCatalog()
	decisions := decision.NewEngine(catalog, zlog, nil)

	model := pricing.NewRandomWalkModel(cfg.SimulationSeed)

	var provider pricing.QuoteProvider
	if cfg.MarketDataURL != "" {
		r.client = marketdata.NewClient(cfg.MarketDataURL, zlog)
		provider = r.client
	}
	resolver := pricing.NewResolver(provider, model, zlog)

	r.positions = position.NewManager(position.Config{
		Ledger:       r.ledger,
		Model:        model,
		Bus:          r.bus,
		Logger:       zlog,
		TickInterval: cfg.TickInterval,
	})

	if cfg.WebSocketURL != "" {
		stream, err := marketdata.NewPriceStream(ctx, cfg.WebSocketURL, nil, zlog)
		if err != nil {
			// The simulation model covers pricing without the stream.
			r.log.Warn("Price stream unavailable, continuing on simulated prices",
				zap.String("url", cfg.WebSocketURL),
				zap.Error(err))
		} else {
			r.stream = stream
		}
	}

	if cfg.PostgresURL != "" {
		store, err := postgres.NewStorage(cfg.PostgresURL, zlog)
		if err != nil {
			return fmt.Errorf("connect storage: %w", err)
		}
		if err := store.RunMigrations(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		r.recorder = storage.NewRecorder(store, zlog)
		r.recorder.Attach(r.bus)
	}

	engCfg := engine.Config{
		Decisions:    decisions,
		Resolver:     resolver,
		Positions:    r.positions,
		Ledger:       r.ledger,
		Bus:          r.bus,
		Logger:       zlog,
		MaxPositions: cfg.MaxPositions,
	}
	if r.stream != nil {
		engCfg.Stream = r.stream
	}
	r.engine = engine.New(engCfg)

	r.feeder = NewFeeder(r.engine, zlog, cfg.SimulationSeed)

	r.log.Info("💊 Simulation initialized",
		zap.Float64("starting_balance_sol", cfg.StartingBalanceSOL),
		zap.Duration("tick_interval", cfg.TickInterval),
		zap.Int("max_positions", cfg.MaxPositions),
		zap.Int64("seed", cfg.SimulationSeed))

	return nil
}

// Run starts the engine and the demo feeder, blocking until the context
// is cancelled or a termination signal arrives.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			r.log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.engine.Run(ctx)
	}()

	go r.feeder.Run(ctx)

	err := <-errCh
	r.shutdown()
	return err
}

// WaitForShutdown blocks until cleanup has finished.
func (r *Runner) WaitForShutdown() {
	<-r.shutdownDone
}

func (r *Runner) shutdown() {
	defer close(r.shutdownDone)

	// Settle everything still open so the final report balances.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	_ = r.positions.Shutdown(shutdownCtx)
	shutdownCancel()

	snapshot, stats := r.engine.Report()
	r.log.Info("📊 Final report",
		zap.Float64("starting_balance", snapshot.StartingBalance),
		zap.Float64("final_balance", snapshot.CurrentBalance),
		zap.Float64("total_realized_pnl", snapshot.TotalRealized),
		zap.Int("total_trades", stats.TotalTrades),
		zap.Float64("win_rate_percent", stats.WinRate))

	if r.stream != nil {
		_ = r.stream.Close()
	}
	if r.client != nil {
		r.client.Close()
	}
	if r.recorder != nil {
		r.recorder.Detach()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = r.bus.Shutdown(ctx)

	_ = r.log.Sync()
}
