package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/StockGoat/internal/config"
	"github.com/IshaanNene/StockGoat/internal/types"
)

// browserHeaders are sent with every page request so distributor sites serve the
// same markup a desktop browser gets. User-Agent comes from the request.
var browserHeaders = http.Header{
	"Accept":                    {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
	"Accept-Language":           {"en-ZA,en;q=0.9"},
	"Accept-Encoding":           {"gzip, deflate, br"},
	"Upgrade-Insecure-Requests": {"1"},
}

// HTTPFetcher implements Fetcher using net/http. Cookies persist across requests so
// session-bound storefronts keep serving the same catalogue.
type HTTPFetcher struct {
	client  *http.Client
	maxBody int64
	logger  *slog.Logger
}

// NewHTTPFetcher creates a new HTTP fetcher.
func NewHTTPFetcher(cfg *config.FetcherConfig, logger *slog.Logger) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	client := &http.Client{
		Transport: newTransport(cfg),
		Jar:       jar,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !cfg.FollowRedirects {
				return http.ErrUseLastResponse
			}
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		},
	}

	return &HTTPFetcher{
		client:  client,
		maxBody: cfg.MaxBodySize,
		logger:  logger.With("component", "http_fetcher"),
	}, nil
}

// newTransport builds a pooled transport. Compression is negotiated by hand so
// brotli bodies can be decoded too.
func newTransport(cfg *config.FetcherConfig) *http.Transport {
	perHost := cfg.MaxIdleConns / 2
	if perHost < 1 {
		perHost = 1
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: perHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.TLSInsecure},
		DisableCompression:  true,
	}
}

// Fetch executes one GET. Every failure, including a non-2xx status, is a
// retryable FetchError; only a malformed request is not.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	target := req.URLString()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &types.FetchError{URL: target, Err: err}
	}
	for key, values := range browserHeaders {
		httpReq.Header[key] = values
	}
	for key := range req.Headers {
		httpReq.Header.Set(key, req.Headers.Get(key))
	}

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, &types.FetchError{URL: target, Err: err, Retryable: true}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, statusError(target, httpResp)
	}

	body, err := f.readBody(httpResp)
	if err != nil {
		return nil, &types.FetchError{URL: target, StatusCode: httpResp.StatusCode, Err: err, Retryable: true}
	}
	elapsed := time.Since(start)

	f.logger.Debug("page fetched",
		"url", target,
		"status", httpResp.StatusCode,
		"bytes", len(body),
		"attempt", req.Attempt,
		"duration", elapsed,
	)

	return types.NewResponse(req, f.Type(), httpResp.StatusCode, httpResp.Header, body,
		httpResp.Request.URL.String(), elapsed), nil
}

// readBody decodes the body and caps the decoded size at maxBody.
func (f *HTTPFetcher) readBody(resp *http.Response) ([]byte, error) {
	reader, err := decompressReader(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if f.maxBody > 0 {
		reader = io.LimitReader(reader, f.maxBody)
	}
	return io.ReadAll(reader)
}

// statusError reports a non-2xx response with a short snippet of its body.
func statusError(target string, resp *http.Response) *types.FetchError {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
	if s := strings.Join(strings.Fields(string(snippet)), " "); s != "" {
		msg += ": " + s
	}
	return &types.FetchError{
		URL:        target,
		StatusCode: resp.StatusCode,
		Err:        errors.New(msg),
		Retryable:  true,
	}
}

// Close releases idle connections.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Type returns the fetcher type identifier.
func (f *HTTPFetcher) Type() string {
	return "http"
}

func decompressReader(encoding string, r io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip":
		return gzip.NewReader(r)
	case "deflate":
		return flate.NewReader(r), nil
	case "br":
		return brotli.NewReader(r), nil
	default:
		return r, nil
	}
}
