// Package collector runs the download, snapshot and load pipeline for each
// breach report category.
package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/hhs-breach-watch/internal/breach"
	"github.com/JakeFAU/hhs-breach-watch/internal/download"
	"github.com/JakeFAU/hhs-breach-watch/internal/ingest"
	"github.com/JakeFAU/hhs-breach-watch/internal/metrics"
	"github.com/JakeFAU/hhs-breach-watch/internal/reaper"
	"github.com/JakeFAU/hhs-breach-watch/internal/robot"
)

// Outcome values reported in breach.CollectionResult.
const (
	OutcomeCompleted = "completed"
	OutcomeTimedOut  = "timed_out"
	OutcomeMissing   = "missing"
	OutcomeFailed    = "failed"
)

// Downloader is the robot session surface the collector drives.
type Downloader interface {
	Download(ctx context.Context, category breach.Category) (robot.Result, error)
	Close(ctx context.Context) (reaper.Report, error)
}

// SessionFactory opens a fresh browser session for one download.
type SessionFactory func(ctx context.Context) (Downloader, error)

// Config holds the collector settings.
type Config struct {
	DownloadDir    string
	ReportName     string
	SnapshotPrefix string
	ContentType    string
	Topic          string
}

// Deps bundles the collaborators a Collector needs. Blobs and Publisher are
// optional.
type Deps struct {
	Sessions  SessionFactory
	Monitor   *download.Monitor
	Store     breach.Store
	Blobs     breach.BlobStore
	Publisher breach.Publisher
	Hasher    breach.Hasher
	Clock     breach.Clock
	IDs       breach.IDGenerator
	Logger    *zap.Logger
}

// Collector downloads reports and replaces the stored rows per category.
type Collector struct {
	cfg  Config
	deps Deps
	log  *zap.Logger
}

// New validates deps and builds a Collector.
func New(cfg Config, deps Deps) (*Collector, error) {
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("store is required")
	case deps.Hasher == nil:
		return nil, fmt.Errorf("hasher is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	case deps.IDs == nil:
		return nil, fmt.Errorf("id generator is required")
	case cfg.ReportName == "":
		return nil, fmt.Errorf("report name is required")
	}
	if deps.Monitor == nil {
		deps.Monitor = download.NewMonitor()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/csv"
	}
	return &Collector{cfg: cfg, deps: deps, log: deps.Logger.Named("collector")}, nil
}

// Run collects every category in order. A failed category does not stop the
// run; its error is joined into the returned error and its result is still
// included.
func (c *Collector) Run(ctx context.Context, categories ...breach.Category) ([]breach.CollectionResult, error) {
	if len(categories) == 0 {
		categories = breach.Categories()
	}
	results := make([]breach.CollectionResult, 0, len(categories))
	var errs []error
	for _, category := range categories {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := c.Collect(ctx, category)
		results = append(results, res)
		if err != nil {
			errs = append(errs, fmt.Errorf("collect %s: %w", category, err))
		}
	}
	return results, errors.Join(errs...)
}

// Collect downloads one category with a fresh session and loads it. A
// download that times out is an outcome, not an error.
func (c *Collector) Collect(ctx context.Context, category breach.Category) (breach.CollectionResult, error) {
	res, err := c.begin(category)
	if err != nil {
		return res, err
	}
	log := c.log.With(zap.String("run_id", res.RunID), zap.String("category", category.String()))

	err = c.collect(ctx, &res, log)
	c.finish(ctx, &res, err, log)
	return res, err
}

func (c *Collector) collect(ctx context.Context, res *breach.CollectionResult, log *zap.Logger) error {
	if c.deps.Sessions == nil {
		return fmt.Errorf("no browser session factory configured")
	}
	sess, err := c.deps.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	dl, dlErr := sess.Download(ctx, res.Category)

	rep, closeErr := sess.Close(ctx)
	if closeErr != nil {
		log.Warn("browser close reported an error", zap.Error(closeErr))
	}
	metrics.ObserveReaped("reaped", len(rep.Reaped))
	metrics.ObserveReaped("killed", len(rep.Killed))

	if dlErr != nil {
		if dl.Dir != "" {
			c.sweep(dl.Dir, log)
		}
		return dlErr
	}
	metrics.ObserveDownload(res.Category.String(), dl.Outcome.String(), dl.Waited)

	fin, err := c.deps.Monitor.Finalize(dl.Dir, dl.FileName, res.Category, dl.Outcome, log)
	metrics.ObservePartialsRemoved(len(fin.Removed))
	if err != nil {
		return err
	}
	switch {
	case dl.Outcome == download.TimedOut:
		res.Outcome = OutcomeTimedOut
		return nil
	case fin.Missing:
		res.Outcome = OutcomeMissing
		return nil
	}
	return c.load(ctx, res, fin.Path)
}

// Ingest loads reports already relocated under the download directory,
// skipping the browser entirely.
func (c *Collector) Ingest(ctx context.Context, categories ...breach.Category) ([]breach.CollectionResult, error) {
	if len(categories) == 0 {
		categories = breach.Categories()
	}
	results := make([]breach.CollectionResult, 0, len(categories))
	var errs []error
	for _, category := range categories {
		res, err := c.begin(category)
		if err != nil {
			return results, err
		}
		log := c.log.With(zap.String("run_id", res.RunID), zap.String("category", category.String()))
		err = c.ingest(ctx, &res, log)
		c.finish(ctx, &res, err, log)
		results = append(results, res)
		if err != nil {
			errs = append(errs, fmt.Errorf("ingest %s: %w", category, err))
		}
	}
	return results, errors.Join(errs...)
}

// ReportPath is where the relocated report for category lives.
func (c *Collector) ReportPath(category breach.Category) string {
	return filepath.Join(c.cfg.DownloadDir, category.Dir(), c.cfg.ReportName)
}

func (c *Collector) ingest(ctx context.Context, res *breach.CollectionResult, log *zap.Logger) error {
	p := c.ReportPath(res.Category)
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("no report to ingest", zap.String("path", p))
			res.Outcome = OutcomeMissing
			return nil
		}
		return fmt.Errorf("stat report: %w", err)
	}
	return c.load(ctx, res, p)
}

// load snapshots, parses and stores the report at p.
func (c *Collector) load(ctx context.Context, res *breach.CollectionResult, p string) error {
	res.ReportPath = p
	// #nosec G304 -- p is the relocated report under the download directory.
	data, err := os.ReadFile(p)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}
	digest, err := c.deps.Hasher.Hash(data)
	if err != nil {
		return fmt.Errorf("hash report: %w", err)
	}
	res.Digest = digest

	if c.deps.Blobs != nil {
		key := SnapshotPath(c.cfg.SnapshotPrefix, res.Category, res.StartedAt.Format("2006/01/02"), digest)
		uri, err := c.deps.Blobs.PutObject(ctx, key, c.cfg.ContentType, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("snapshot report: %w", err)
		}
		res.BlobURI = uri
	}

	rows, err := ingest.Parse(bytes.NewReader(data), res.Category)
	if err != nil {
		return fmt.Errorf("parse report: %w", err)
	}
	n, err := c.deps.Store.ReplaceCategory(ctx, res.Category.Archived(), rows)
	if err != nil {
		return fmt.Errorf("store rows: %w", err)
	}
	res.Rows = n
	res.Outcome = OutcomeCompleted
	metrics.ObserveLoad(res.Category.String(), n, c.deps.Clock.Now())
	return nil
}

// SnapshotPath builds the object key <prefix>/<category>/<day>/<digest>.csv.
func SnapshotPath(prefix string, category breach.Category, day, digest string) string {
	return path.Join(prefix, category.String(), day, digest+".csv")
}

func (c *Collector) begin(category breach.Category) (breach.CollectionResult, error) {
	id, err := c.deps.IDs.NewID()
	if err != nil {
		return breach.CollectionResult{Category: category}, fmt.Errorf("run id: %w", err)
	}
	return breach.CollectionResult{
		RunID:     id,
		Category:  category,
		StartedAt: c.deps.Clock.Now(),
	}, nil
}

func (c *Collector) finish(ctx context.Context, res *breach.CollectionResult, err error, log *zap.Logger) {
	res.FinishedAt = c.deps.Clock.Now()
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		log.Error("collection failed", zap.Error(err))
	} else {
		log.Info("collection finished",
			zap.String("outcome", res.Outcome),
			zap.Int64("rows", res.Rows),
			zap.String("blob_uri", res.BlobURI),
		)
	}
	c.publish(ctx, *res, log)
}

func (c *Collector) publish(ctx context.Context, res breach.CollectionResult, log *zap.Logger) {
	if c.deps.Publisher == nil || c.cfg.Topic == "" {
		return
	}
	id, err := c.deps.Publisher.Publish(ctx, c.cfg.Topic, res)
	if err != nil {
		log.Warn("publish collection result failed", zap.Error(err))
		return
	}
	log.Debug("collection result published", zap.String("message_id", id))
}

func (c *Collector) sweep(dir string, log *zap.Logger) {
	removed, err := c.deps.Monitor.RemovePartials(dir)
	if err != nil {
		log.Warn("partial download cleanup incomplete", zap.Error(err))
	}
	metrics.ObservePartialsRemoved(len(removed))
}
