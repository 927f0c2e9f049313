// Package app builds the long-lived services shared by the CLI commands and
// acts as their dependency injection container.
package app

import (
	"context"
	"fmt"

	gcsstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/hhs-breach-watch/internal/api"
	"github.com/JakeFAU/hhs-breach-watch/internal/breach"
	"github.com/JakeFAU/hhs-breach-watch/internal/clock/system"
	"github.com/JakeFAU/hhs-breach-watch/internal/collector"
	"github.com/JakeFAU/hhs-breach-watch/internal/config"
	"github.com/JakeFAU/hhs-breach-watch/internal/download"
	"github.com/JakeFAU/hhs-breach-watch/internal/hash/sha256"
	"github.com/JakeFAU/hhs-breach-watch/internal/id/uuid"
	"github.com/JakeFAU/hhs-breach-watch/internal/publisher/pubsub"
	"github.com/JakeFAU/hhs-breach-watch/internal/reaper"
	"github.com/JakeFAU/hhs-breach-watch/internal/robot"
	"github.com/JakeFAU/hhs-breach-watch/internal/storage/gcs"
	"github.com/JakeFAU/hhs-breach-watch/internal/storage/local"
	"github.com/JakeFAU/hhs-breach-watch/internal/storage/memory"
	"github.com/JakeFAU/hhs-breach-watch/internal/storage/postgres"
)

// Migrator creates the relational schema.
type Migrator interface {
	EnsureSchema(ctx context.Context) error
}

// App holds the shared services for one process.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	store     breach.Store
	migrator  Migrator
	blobs     breach.BlobStore
	publisher breach.Publisher
	closers   []func() error
}

// New builds every service from cfg and fails fast when one cannot start.
// Without a DSN the breach store lives in memory; without a bucket or base
// directory report snapshots are skipped.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	for _, step := range []func(context.Context) error{a.initStore, a.initBlobs, a.initPublisher} {
		if err := step(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	logger.Info("application services initialized")
	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("db.dsn not set, using in-memory breach store")
		a.store = memory.NewBreachStore()
		return nil
	}
	pg, err := postgres.NewBreachStore(ctx, postgres.Config{
		DSN:             a.cfg.DB.DSN,
		Table:           a.cfg.DB.Table,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("init breach store: %w", err)
	}
	a.logger.Info("connected to postgres", zap.String("table", a.cfg.DB.Table))
	a.store = pg
	a.migrator = pg
	a.closers = append(a.closers, func() error { pg.Close(); return nil })
	return nil
}

func (a *App) initBlobs(ctx context.Context) error {
	switch {
	case a.cfg.Storage.GCSBucket != "":
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return fmt.Errorf("init gcs blob store: %w", err)
		}
		a.logger.Info("snapshotting reports to gcs", zap.String("bucket", a.cfg.Storage.GCSBucket))
		a.blobs = store
	case a.cfg.Storage.LocalBaseDir != "":
		store, err := local.New(local.Config{BaseDir: a.cfg.Storage.LocalBaseDir})
		if err != nil {
			return fmt.Errorf("init local blob store: %w", err)
		}
		a.logger.Info("snapshotting reports locally", zap.String("dir", a.cfg.Storage.LocalBaseDir))
		a.blobs = store
	default:
		a.logger.Info("report snapshots disabled")
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	if a.cfg.PubSub.TopicName == "" {
		return nil
	}
	pub, err := pubsub.Dial(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
	if err != nil {
		return fmt.Errorf("init publisher: %w", err)
	}
	a.closers = append(a.closers, pub.Close)
	a.publisher = pub
	return nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store returns the breach store.
func (a *App) Store() breach.Store { return a.store }

// Blobs returns the snapshot store, or nil when snapshots are disabled.
func (a *App) Blobs() breach.BlobStore { return a.blobs }

// Migrate creates the schema when a relational store is configured.
func (a *App) Migrate(ctx context.Context) error {
	if a.migrator == nil {
		a.logger.Info("in-memory store needs no migration")
		return nil
	}
	if err := a.migrator.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	a.logger.Info("schema ensured", zap.String("table", a.cfg.DB.Table))
	return nil
}

// Monitor builds the download monitor from the configured markers.
func (a *App) Monitor() *download.Monitor {
	return download.NewMonitor(a.cfg.Download.Markers...)
}

// RobotConfig maps the service configuration onto a robot session config.
func (a *App) RobotConfig() robot.Config {
	return robot.Config{
		PortalURL:         a.cfg.Portal.URL,
		ReadySelector:     a.cfg.Portal.ReadySelector,
		ArchiveTabXPath:   a.cfg.Portal.ArchiveTab,
		CSVButtonXPath:    a.cfg.Portal.CSVButton,
		DownloadDir:       a.cfg.Download.Dir,
		ReportName:        a.cfg.Download.ReportName,
		NavigationTimeout: a.cfg.Robot.NavigationTimeout,
		SettleDelay:       a.cfg.Robot.SettleDelay,
		DownloadStartWait: a.cfg.Robot.DownloadStartWait,
		PollInterval:      a.cfg.Download.PollInterval,
		DownloadTimeout:   a.cfg.Download.Timeout,
	}
}

// Sessions returns a factory that launches a fresh Chrome per download.
func (a *App) Sessions() collector.SessionFactory {
	monitor := a.Monitor()
	return func(ctx context.Context) (collector.Downloader, error) {
		drv, err := robot.NewChromeDriver(ctx, robot.ChromeOptions{
			Headless:      a.cfg.Robot.Headless,
			UserAgent:     a.cfg.Robot.UserAgent,
			LocateTimeout: a.cfg.Robot.LocateTimeout,
			ExecPath:      a.cfg.Robot.ChromePath,
		})
		if err != nil {
			return nil, err
		}
		sess, err := robot.NewSession(
			a.RobotConfig(),
			drv,
			monitor,
			reaper.New(a.cfg.Robot.ProcessFamily, a.logger.Named("reaper")),
			a.logger.Named("robot"),
		)
		if err != nil {
			if cerr := drv.Close(); cerr != nil {
				a.logger.Warn("close browser after failed session init", zap.Error(cerr))
			}
			return nil, err
		}
		return sess, nil
	}
}

// Collector builds the download and load pipeline.
func (a *App) Collector() (*collector.Collector, error) {
	return a.collector(a.Sessions())
}

func (a *App) collector(sessions collector.SessionFactory) (*collector.Collector, error) {
	c, err := collector.New(collector.Config{
		DownloadDir:    a.cfg.Download.Dir,
		ReportName:     a.cfg.Download.ReportName,
		SnapshotPrefix: a.cfg.Storage.Prefix,
		ContentType:    a.cfg.Storage.ContentType,
		Topic:          a.cfg.PubSub.TopicName,
	}, collector.Deps{
		Sessions:  sessions,
		Monitor:   a.Monitor(),
		Store:     a.store,
		Blobs:     a.blobs,
		Publisher: a.publisher,
		Hasher:    sha256.New(),
		Clock:     system.New(),
		IDs:       uuid.New(),
		Logger:    a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build collector: %w", err)
	}
	return c, nil
}

// Server builds the HTTP API over the breach store.
func (a *App) Server() *api.Server {
	return api.NewServer(a.store, a.cfg, a.logger)
}

// Close releases every service in reverse start order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync() //nolint:errcheck // stderr sync fails on some terminals
}
