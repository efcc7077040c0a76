// Package fetch downloads spreadsheets behind cloud share links.
//
// A [Fetcher] resolves OneDrive, Google Drive and SharePoint share links to
// their direct download form, retrieves the payload with a bounded timeout and
// retries transient failures with exponential backoff. It either returns the
// complete payload or a [*FetchError]; it never returns partial bytes and
// never caches.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Config configures the fetcher.
type Config struct {
	Timeout     time.Duration // Per attempt. Default: 60s.
	MaxAttempts int           // Default: 3.
	BaseBackoff time.Duration // Wait after the first failure, doubled per attempt. Default: 1s.
	MaxBackoff  time.Duration // Default: 30s.
	MaxBytes    int64         // Max payload size. Default: 50MB.
	UserAgent   string
	// ShortLinkHosts are followed with a GET before rewriting.
	// Default: 1drv.ms.
	ShortLinkHosts []string
	Logger         *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 50 * 1024 * 1024 // 50MB
	}
	if c.UserAgent == "" {
		c.UserAgent = "proddash-sync/1.0"
	}
	if c.ShortLinkHosts == nil {
		c.ShortLinkHosts = []string{"1drv.ms"}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Fetcher retrieves share-linked files.
type Fetcher struct {
	client *http.Client
	config Config
	logger *slog.Logger
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				return nil
			},
		},
		config: cfg,
		logger: cfg.Logger.With("component", "fetch"),
	}
}

// Fetch resolves shareURL and downloads it.
func (f *Fetcher) Fetch(ctx context.Context, shareURL string) ([]byte, error) {
	var (
		lastErr  error
		attempts int
	)

	for attempt := 0; attempt < f.config.MaxAttempts; attempt++ {
		attempts++
		start := time.Now()

		data, err := f.fetchOnce(ctx, shareURL)
		if err == nil {
			f.logger.DebugContext(ctx, "fetch complete",
				"attempt", attempts,
				"bytes", len(data),
				"duration_ms", time.Since(start).Milliseconds())
			return data, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isTransient(err) {
			break
		}
		if attempt == f.config.MaxAttempts-1 {
			break
		}

		wait := f.backoff(attempt)
		f.logger.WarnContext(ctx, "retrying fetch",
			"attempt", attempts,
			"max_attempts", f.config.MaxAttempts,
			"backoff_ms", wait.Milliseconds(),
			"error", err)

		if !sleep(ctx, wait) {
			break
		}
	}

	return nil, &FetchError{URL: redactURL(shareURL), Attempts: attempts, Err: lastErr}
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	wait := f.config.BaseBackoff * (1 << uint(attempt))
	if wait <= 0 || wait > f.config.MaxBackoff {
		wait = f.config.MaxBackoff
	}
	return wait
}

// sleep waits for d or until ctx is done. It reports whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, shareURL string) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(shareURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	switch u.Scheme {
	case "file":
		return f.readFile(u.Path)
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	direct, err := f.resolve(ctx, u)
	if err != nil {
		return nil, err
	}

	body, ctype, final, err := f.get(ctx, direct)
	if err != nil {
		return nil, err
	}
	if !isHTML(ctype, body) {
		return body, nil
	}

	// Large shared files sit behind a confirmation page.
	next, ok := interstitialLink(body, final)
	if !ok {
		return nil, ErrHTMLPage
	}
	f.logger.DebugContext(ctx, "following download confirmation", "host", next.Host)

	body, ctype, _, err = f.get(ctx, next)
	if err != nil {
		return nil, err
	}
	if isHTML(ctype, body) {
		return nil, ErrHTMLPage
	}
	return body, nil
}

// get downloads u completely. It returns the body, its content type and the
// URL after redirects.
func (f *Fetcher) get(ctx context.Context, u *url.URL) ([]byte, string, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", nil, fmt.Errorf("http get: %w", redactErr(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if resp.ContentLength > f.config.MaxBytes {
		return nil, "", nil, fmt.Errorf("%w: %d bytes announced", ErrTooLarge, resp.ContentLength)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes+1))
	if err != nil {
		return nil, "", nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.config.MaxBytes {
		return nil, "", nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.config.MaxBytes)
	}
	if resp.ContentLength >= 0 && int64(len(body)) != resp.ContentLength {
		return nil, "", nil, fmt.Errorf("%w: got %d of %d bytes", ErrTruncated, len(body), resp.ContentLength)
	}

	return body, resp.Header.Get("Content-Type"), resp.Request.URL, nil
}

func (f *Fetcher) readFile(path string) ([]byte, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	defer fh.Close()

	data, err := io.ReadAll(io.LimitReader(fh, f.config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > f.config.MaxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.config.MaxBytes)
	}
	return data, nil
}

func isHTML(contentType string, body []byte) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if mt == "text/html" || mt == "application/xhtml+xml" {
			return true
		}
	}
	return strings.HasPrefix(http.DetectContentType(body), "text/html")
}

// interstitialLink finds the download confirmation target on an HTML page.
func interstitialLink(page []byte, base *url.URL) (*url.URL, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, false
	}

	if href, ok := doc.Find("a#uc-download-link").Attr("href"); ok {
		return resolveRef(base, href)
	}

	if form := doc.Find("form#download-form").First(); form.Length() > 0 {
		action, _ := form.Attr("action")
		target, ok := resolveRef(base, action)
		if !ok {
			return nil, false
		}
		q := target.Query()
		form.Find("input[name]").Each(func(_ int, in *goquery.Selection) {
			name, _ := in.Attr("name")
			value, _ := in.Attr("value")
			q.Set(name, value)
		})
		target.RawQuery = q.Encode()
		return target, true
	}

	if href, ok := doc.Find(`a[href*="download"]`).First().Attr("href"); ok {
		return resolveRef(base, href)
	}
	return nil, false
}

func resolveRef(base *url.URL, ref string) (*url.URL, bool) {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, false
	}
	if base != nil {
		r = base.ResolveReference(r)
	}
	if r.Scheme != "http" && r.Scheme != "https" {
		return nil, false
	}
	return r, true
}
