package robot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
)

// Driver is the browser surface the session needs.
type Driver interface {
	// AllowDownloads routes downloads into dir.
	AllowDownloads(ctx context.Context, dir string) error
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	// Click clicks the element matched by xpath, returning ErrElementNotFound
	// when it does not become visible in time.
	Click(ctx context.Context, xpath string) error
	HTML(ctx context.Context) (string, error)
	// Downloads delivers the suggested file name of each download that begins.
	Downloads() <-chan string
	Close() error
}

// ChromeOptions configures the chromedp-backed Driver.
type ChromeOptions struct {
	Headless      bool
	UserAgent     string
	LocateTimeout time.Duration
	ExecPath      string
}

type chromeDriver struct {
	opts        ChromeOptions
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	downloads   chan string
}

// NewChromeDriver starts a Chrome allocator and tab bound to parent.
func NewChromeDriver(parent context.Context, opts ChromeOptions) (Driver, error) {
	if opts.LocateTimeout <= 0 {
		opts.LocateTimeout = 12 * time.Second
	}
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	d := &chromeDriver{
		opts:        opts,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		downloads:   make(chan string, 4),
	}
	chromedp.ListenTarget(tabCtx, func(ev any) {
		if e, ok := ev.(*browser.EventDownloadWillBegin); ok {
			select {
			case d.downloads <- e.SuggestedFilename:
			default:
			}
		}
	})
	// Start the browser now so launch failures surface here.
	if err := chromedp.Run(tabCtx); err != nil {
		d.cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return d, nil
}

// run executes actions on the tab, bounded by ctx.
func (d *chromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(d.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (d *chromeDriver) AllowDownloads(ctx context.Context, dir string) error {
	err := d.run(ctx, browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
		WithDownloadPath(dir).
		WithEventsEnabled(true))
	if err != nil {
		return fmt.Errorf("set download behavior: %w", err)
	}
	return nil
}

func (d *chromeDriver) Navigate(ctx context.Context, url string) error {
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (d *chromeDriver) WaitVisible(ctx context.Context, selector string) error {
	if err := d.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

func (d *chromeDriver) Click(ctx context.Context, xpath string) error {
	locateCtx, cancel := context.WithTimeout(ctx, d.opts.LocateTimeout)
	defer cancel()
	err := d.run(locateCtx, chromedp.Click(xpath, chromedp.BySearch, chromedp.NodeVisible))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return fmt.Errorf("click %s: %w", xpath, ErrElementNotFound)
	default:
		return fmt.Errorf("click %s: %w", xpath, err)
	}
}

func (d *chromeDriver) HTML(ctx context.Context) (string, error) {
	var html string
	if err := d.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

func (d *chromeDriver) Downloads() <-chan string {
	return d.downloads
}

func (d *chromeDriver) cancel() {
	d.tabCancel()
	d.allocCancel()
}

// Close shuts the tab and the browser process.
func (d *chromeDriver) Close() error {
	err := chromedp.Cancel(d.tabCtx)
	d.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}
