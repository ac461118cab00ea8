package cli

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/happyprime/alertbar/internal/config"
	"github.com/happyprime/alertbar/pkg/banner"
	"github.com/happyprime/alertbar/pkg/cache"
	"github.com/happyprime/alertbar/pkg/expiry"
	"github.com/happyprime/alertbar/pkg/levels"
	"github.com/happyprime/alertbar/pkg/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "alertbar",
	Short: "Alertbar - time-bounded site alert banner lifecycle",
	Long: `Alertbar manages a single site-wide alert banner: editors schedule
alerts with a severity level and an optional display-through instant, the
site reads the currently active alert through a short-lived cache, and a
lazy background sweep demotes expired alerts to the default level.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.alertbar/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// core holds the fully wired alert lifecycle components.
type core struct {
	store     storage.Store
	registry  *levels.Registry
	service   *banner.Service
	set       *expiry.TrackedSet
	scheduler *expiry.Scheduler
	sweeper   *expiry.Sweeper
	backend   *expiry.TimerBackend
	logger    *slog.Logger
}

func (c *core) Close() error {
	c.backend.Stop()
	return c.store.Close()
}

// initCore wires store, registry, cache, scheduler, and sweeper. The
// tracked expiration set is primed from the durable store so a restart
// picks up pending expirations.
func initCore(ctx context.Context, cfg *config.Config) (*core, error) {
	logger := newLogger(cfg)

	store, err := storage.NewSQLite(cfg.Storage.Path, logger)
	if err != nil {
		return nil, err
	}

	registry := levels.NewRegistry(store, logger)
	set := expiry.NewTrackedSet()
	backend := expiry.NewTimerBackend()

	lookahead, err := time.ParseDuration(cfg.Sweep.Lookahead)
	if err != nil {
		lookahead = expiry.DefaultLookahead
	}

	var sweeper *expiry.Sweeper
	scheduler := expiry.NewScheduler(set, backend, lookahead, func() {
		if err := sweeper.Sweep(context.Background()); err != nil {
			logger.Error("scheduled sweep failed", "error", err)
		}
	}, logger)

	service := banner.NewService(store, cache.NewMemory(time.Minute), registry, scheduler, logger)
	sweeper = expiry.NewSweeper(store, registry, set, service, logger)

	expiring, err := store.ListExpiring(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}
	primed := make(map[string]time.Time, len(expiring))
	for _, entry := range expiring {
		primed[entry.ID] = entry.DisplayThrough
	}
	set.Replace(primed)

	return &core{
		store:     store,
		registry:  registry,
		service:   service,
		set:       set,
		scheduler: scheduler,
		sweeper:   sweeper,
		backend:   backend,
		logger:    logger,
	}, nil
}
