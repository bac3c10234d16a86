package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/skillgrid/assessor/internal/assessment"
	"github.com/skillgrid/assessor/internal/catalog"
	"github.com/skillgrid/assessor/internal/platform/cache"
	"github.com/skillgrid/assessor/internal/platform/config"
	"github.com/skillgrid/assessor/internal/platform/database"
	"github.com/skillgrid/assessor/internal/platform/logging"
	"github.com/skillgrid/assessor/internal/platform/messaging"
)

// app carries state shared by all subcommands.
type app struct {
	cfg       *config.Config
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "assessor",
		Short:        "Weighted competency test generator",
		Long:         "assessor apportions test themes across competencies by weight, draws topics and questions, and manages the catalog they come from.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides ASSESS_LOG_LEVEL)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format: json or text (overrides ASSESS_LOG_FORMAT)")

	root.AddCommand(
		newDistributeCmd(a),
		newGenerateCmd(a),
		newBankCmd(a),
		newWeightsCmd(a),
		newMigrateCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	slog.SetDefault(logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr()))
	return nil
}

func (a *app) dbOptions() database.Options {
	return database.Options{
		URL:      a.cfg.Database.URL,
		MaxConns: a.cfg.Database.MaxConns,
		MinConns: a.cfg.Database.MinConns,
	}
}

// backend is the set of connections a data command needs.
type backend struct {
	db     *database.DB
	store  *catalog.PostgresStore
	source catalog.Source
	cached *catalog.CachedSource
	cache  *cache.Cache
	bus    *messaging.Bus
}

// openBackend connects to PostgreSQL and, when enabled, Redis and NATS.
// Redis and NATS failures are logged and the command continues without them.
func (a *app) openBackend(ctx context.Context, withBus bool) (*backend, error) {
	db, err := database.New(ctx, a.dbOptions())
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	store, err := catalog.NewPostgresStore(db.Pool)
	if err != nil {
		db.Close()
		return nil, err
	}
	b := &backend{db: db, store: store, source: store}

	if a.cfg.Cache.Enabled {
		c, err := cache.New(ctx, a.cfg.Cache.URL, a.cfg.Cache.TTL)
		if err != nil {
			slog.Warn("cache unavailable; reading catalog directly", "error", err)
		} else {
			b.cache = c
			b.cached = catalog.NewCachedSource(store, c, slog.Default())
			b.source = b.cached
		}
	}

	if withBus && a.cfg.NATS.Enabled {
		bus, err := messaging.New(ctx, a.cfg.NATS.URL, "assessor")
		if err != nil {
			slog.Warn("NATS unavailable; events stay in the database only", "error", err)
		} else {
			b.bus = bus
		}
	}
	return b, nil
}

// events returns the event sink for generation runs.
func (b *backend) events(subject string) assessment.EventLogger {
	loggers := assessment.MultiEventLogger{assessment.NewPostgresEventLogger(b.db.Pool)}
	if b.bus != nil {
		loggers = append(loggers, assessment.NewNATSEventLogger(b.bus, subject))
	}
	return loggers
}

// invalidate drops cached catalog reads after a write.
func (b *backend) invalidate(ctx context.Context) {
	if b.cached == nil {
		return
	}
	if err := b.cached.Invalidate(ctx); err != nil {
		slog.Warn("failed to invalidate catalog cache", "error", err)
	}
}

func (b *backend) Close() {
	if b.bus != nil {
		if err := b.bus.Close(); err != nil {
			slog.Warn("closing NATS", "error", err)
		}
	}
	if b.cache != nil {
		if err := b.cache.Close(); err != nil {
			slog.Warn("closing cache", "error", err)
		}
	}
	b.db.Close()
}
