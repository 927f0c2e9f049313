package robot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/hhs-breach-watch/internal/breach"
	"github.com/JakeFAU/hhs-breach-watch/internal/download"
	"github.com/JakeFAU/hhs-breach-watch/internal/reaper"
)

// Config controls how a Session walks the portal and waits for the report.
type Config struct {
	PortalURL       string
	ReadySelector   string
	ArchiveTabXPath string
	CSVButtonXPath  string

	DownloadDir string
	ReportName  string

	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	DownloadStartWait time.Duration
	PollInterval      time.Duration
	DownloadTimeout   time.Duration
}

// Result describes one download attempt.
type Result struct {
	Category breach.Category
	Outcome  download.Outcome
	Dir      string
	FileName string
	Waited   time.Duration
}

// Sweeper cleans up processes left behind once the browser is gone.
type Sweeper interface {
	Sweep(ctx context.Context) reaper.Report
}

// Session is one browser bound to one download directory.
type Session struct {
	cfg     Config
	dir     string
	driver  Driver
	monitor *download.Monitor
	sweeper Sweeper
	logger  *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	closed bool
}

// NewSession resolves and creates the download directory and wraps driver.
// The session owns driver from here on and closes it in Close.
func NewSession(
	cfg Config,
	driver Driver,
	monitor *download.Monitor,
	sweeper Sweeper,
	logger *zap.Logger,
) (*Session, error) {
	if driver == nil {
		return nil, fmt.Errorf("driver is required")
	}
	if cfg.PortalURL == "" {
		return nil, fmt.Errorf("portal url is required")
	}
	if cfg.ReportName == "" || filepath.Base(cfg.ReportName) != cfg.ReportName {
		return nil, fmt.Errorf("invalid report name %q", cfg.ReportName)
	}
	dir, err := filepath.Abs(cfg.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("resolve download dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	if monitor == nil {
		monitor = download.NewMonitor()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		cfg:     cfg,
		dir:     dir,
		driver:  driver,
		monitor: monitor,
		sweeper: sweeper,
		logger:  logger,
		now:     time.Now,
		sleep:   sleepContext,
	}, nil
}

// Dir returns the absolute download directory.
func (s *Session) Dir() string {
	return s.dir
}

// Download walks the portal to the CSV export for category and waits for the
// file to land. A download that never settles is reported as TimedOut, not
// as an error.
func (s *Session) Download(ctx context.Context, category breach.Category) (Result, error) {
	res := Result{Category: category, Dir: s.dir, FileName: s.cfg.ReportName}
	log := s.logger.With(zap.String("category", category.String()))

	if err := s.driver.AllowDownloads(ctx, s.dir); err != nil {
		return res, err
	}
	if err := s.open(ctx); err != nil {
		return res, err
	}
	if category.Archived() {
		if err := s.openArchive(ctx); err != nil {
			return res, err
		}
	}
	if err := s.clickCSV(ctx); err != nil {
		return res, err
	}
	log.Info("csv export requested")

	suggested := s.awaitStart(ctx)
	if err := s.awaitLanding(ctx, suggested); err != nil {
		return res, err
	}
	start := s.now()
	outcome, err := s.monitor.AwaitCompletion(ctx, s.dir, s.cfg.PollInterval, s.cfg.DownloadTimeout)
	res.Waited = s.now().Sub(start)
	if err != nil {
		return res, err
	}
	res.Outcome = outcome
	log.Info("download settled", zap.Stringer("outcome", outcome), zap.Duration("waited", res.Waited))

	if outcome == download.Completed && suggested != "" && suggested != s.cfg.ReportName {
		if err := s.rename(suggested); err != nil {
			log.Warn("could not rename downloaded report", zap.String("file", suggested), zap.Error(err))
		}
	}
	return res, nil
}

// Close shuts the browser and then sweeps for leftover browser processes.
// It is safe to call more than once.
func (s *Session) Close(ctx context.Context) (reaper.Report, error) {
	if s.closed {
		return reaper.Report{}, nil
	}
	s.closed = true
	err := s.driver.Close()
	var rep reaper.Report
	if s.sweeper != nil {
		rep = s.sweeper.Sweep(ctx)
	}
	return rep, err
}

func (s *Session) open(ctx context.Context) error {
	navCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.cfg.NavigationTimeout > 0 {
		navCtx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	}
	defer cancel()
	if err := s.driver.Navigate(navCtx, s.cfg.PortalURL); err != nil {
		return err
	}
	if s.cfg.ReadySelector == "" {
		return nil
	}
	if err := s.driver.WaitVisible(navCtx, s.cfg.ReadySelector); err != nil {
		return fmt.Errorf("portal not ready: %w", err)
	}
	return nil
}

func (s *Session) openArchive(ctx context.Context) error {
	if err := s.settle(ctx); err != nil {
		return err
	}
	if err := s.driver.Click(ctx, s.cfg.ArchiveTabXPath); err != nil {
		return fmt.Errorf("open archive tab: %w", err)
	}
	if err := s.settle(ctx); err != nil {
		return err
	}
	html, err := s.driver.HTML(ctx)
	if err != nil {
		return err
	}
	link, err := ResearchReportLocator(html)
	if err != nil {
		return err
	}
	if err := s.driver.Click(ctx, link); err != nil {
		return fmt.Errorf("open research report: %w", err)
	}
	return nil
}

// clickCSV tries the configured export button first and falls back to the
// CSV image discovered in the rendered page.
func (s *Session) clickCSV(ctx context.Context) error {
	if err := s.settle(ctx); err != nil {
		return err
	}
	err := s.driver.Click(ctx, s.cfg.CSVButtonXPath)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrElementNotFound) {
		return fmt.Errorf("click csv export: %w", err)
	}
	s.logger.Debug("configured csv button missing, searching page", zap.String("xpath", s.cfg.CSVButtonXPath))

	html, herr := s.driver.HTML(ctx)
	if herr != nil {
		return herr
	}
	fallback, ferr := CSVLocator(html)
	if ferr != nil {
		return ferr
	}
	if err := s.driver.Click(ctx, fallback); err != nil {
		return fmt.Errorf("click csv export fallback: %w", err)
	}
	return nil
}

// awaitStart waits briefly for the browser to announce the download so the
// monitor does not observe an empty directory before the partial appears.
func (s *Session) awaitStart(ctx context.Context) string {
	if s.cfg.DownloadStartWait <= 0 {
		return ""
	}
	timer := time.NewTimer(s.cfg.DownloadStartWait)
	defer timer.Stop()
	select {
	case name := <-s.driver.Downloads():
		return filepath.Base(name)
	case <-timer.C:
		s.logger.Warn("no download announced", zap.Duration("waited", s.cfg.DownloadStartWait))
		return ""
	case <-ctx.Done():
		return ""
	}
}

// landingPoll bounds how often awaitLanding lists the directory.
const landingPoll = 25 * time.Millisecond

// awaitLanding waits, up to DownloadStartWait, until the download has put
// something on disk: a partial file, the announced file or the report itself.
// Chrome announces a download before it creates the partial, so polling an
// empty directory straight away would report Completed too early.
func (s *Session) awaitLanding(ctx context.Context, suggested string) error {
	if s.cfg.DownloadStartWait <= 0 {
		return nil
	}
	poll := landingPoll
	if s.cfg.PollInterval > 0 {
		poll = min(poll, s.cfg.PollInterval)
	}
	deadline := s.now().Add(s.cfg.DownloadStartWait)
	for {
		landed, err := s.landed(suggested)
		if err != nil {
			return err
		}
		if landed {
			return nil
		}
		remaining := deadline.Sub(s.now())
		if remaining <= 0 {
			s.logger.Warn("download did not reach the directory", zap.Duration("waited", s.cfg.DownloadStartWait))
			return nil
		}
		if err := s.sleep(ctx, min(poll, remaining)); err != nil {
			return err
		}
	}
}

func (s *Session) landed(suggested string) (bool, error) {
	partials, err := s.monitor.Partials(s.dir)
	if err != nil {
		return false, err
	}
	if len(partials) > 0 {
		return true, nil
	}
	for _, name := range []string{suggested, s.cfg.ReportName} {
		if name == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.dir, name)); err == nil {
			return true, nil
		}
	}
	return false, nil
}

func (s *Session) rename(name string) error {
	if err := os.Rename(filepath.Join(s.dir, name), filepath.Join(s.dir, s.cfg.ReportName)); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

func (s *Session) settle(ctx context.Context) error {
	if s.cfg.SettleDelay <= 0 {
		return nil
	}
	return s.sleep(ctx, s.cfg.SettleDelay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("robot wait: %w", ctx.Err())
	}
}
