package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/StockGoat/internal/config"
	"github.com/IshaanNene/StockGoat/internal/types"
)

// BrowserFetcher implements Fetcher using a headless browser via Rod. It is used for
// distributors whose listings are rendered client-side.
type BrowserFetcher struct {
	cfg     *config.BrowserConfig
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

// NewBrowserFetcher creates a browser fetcher. Chromium is launched lazily on the
// first Fetch so that configuring a browser distributor costs nothing until it runs.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger) *BrowserFetcher {
	return &BrowserFetcher{
		cfg:     &cfg.Browser,
		timeout: cfg.Fetcher.Timeout,
		logger:  logger.With("component", "browser_fetcher"),
	}
}

// connect launches (or attaches to) Chromium once.
func (bf *BrowserFetcher) connect() (*rod.Browser, error) {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	if bf.browser != nil {
		return bf.browser, nil
	}

	controlURL := bf.cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().
			Headless(true).
			Set("disable-gpu").
			Set("disable-dev-shm-usage").
			Set("no-sandbox").
			Set("disable-blink-features", "AutomationControlled")
		if bf.cfg.WindowSize != "" {
			l = l.Set("window-size", bf.cfg.WindowSize)
		}
		if bf.cfg.UserDataDir != "" {
			l = l.UserDataDir(bf.cfg.UserDataDir)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	bf.browser = browser
	bf.logger.Info("browser fetcher ready", "stealth", bf.cfg.Stealth)
	return browser, nil
}

func (bf *BrowserFetcher) newPage(browser *rod.Browser) (*rod.Page, error) {
	if bf.cfg.Stealth {
		page, err := stealth.Page(browser)
		if err != nil {
			return nil, fmt.Errorf("stealth page: %w", err)
		}
		return page, nil
	}
	return browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

// Fetch navigates to a URL and returns the rendered page content.
func (bf *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	start := time.Now()

	browser, err := bf.connect()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}

	page, err := bf.newPage(browser)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}
	defer page.Close()

	timeout := bf.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	page = page.Context(ctx).Timeout(timeout)

	if ua := req.Headers.Get("User-Agent"); ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			bf.logger.Warn("failed to set user agent", "error", err)
		}
	}

	// The document status is only visible on the network event stream. Listening
	// starts before navigation so the main frame's response cannot be missed.
	var status atomic.Int64
	waitDocument := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if !isMainDocument(e, page.FrameID) {
			return false
		}
		status.Store(int64(e.Response.Status))
		return true
	})

	if err := page.Navigate(req.URLString()); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}
	waitDocument()

	if err := page.WaitStable(bf.cfg.WaitStable); err != nil {
		bf.logger.Warn("page stability timeout, continuing", "url", req.URLString(), "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}

	finalURL := req.URLString()
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	duration := time.Since(start)
	resp, err := renderedResponse(req, bf.Type(), int(status.Load()), html, finalURL, duration)
	if err != nil {
		return nil, err
	}

	bf.logger.Debug("browser fetch complete",
		"url", req.URLString(),
		"final_url", finalURL,
		"status", resp.StatusCode,
		"size", len(html),
		"duration", duration,
	)

	return resp, nil
}

// isMainDocument reports whether e is the document response of the page's main frame.
func isMainDocument(e *proto.NetworkResponseReceived, frame proto.PageFrameID) bool {
	return e.Type == proto.NetworkResourceTypeDocument && (frame == "" || e.FrameID == frame)
}

// renderedResponse applies the HTTP transport's status rules to a rendered page.
// A status of 0 means the document response was never observed; the page is then
// accepted as rendered.
func renderedResponse(req *types.Request, transport string, status int, html, finalURL string, elapsed time.Duration) (*types.Response, error) {
	if status == 0 {
		status = http.StatusOK
	}
	if status < 200 || status >= 300 {
		return nil, &types.FetchError{
			URL:        req.URLString(),
			StatusCode: status,
			Err:        fmt.Errorf("HTTP %d", status),
			Retryable:  true,
		}
	}
	if html == "" {
		return nil, &types.FetchError{URL: req.URLString(), StatusCode: status, Err: types.ErrEmptyResponse, Retryable: true}
	}
	return types.NewResponse(req, transport, status, nil, []byte(html), finalURL, elapsed), nil
}

// Close shuts down the browser and releases resources.
func (bf *BrowserFetcher) Close() error {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	if bf.browser != nil {
		err := bf.browser.Close()
		bf.browser = nil
		return err
	}
	return nil
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}
