// Package fetch downloads remote mesh files.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"time"

	"stlquote/internal/domain"
	"stlquote/internal/infra/logging"
)

// Downloader streams remote files with a bounded timeout and size.
type Downloader struct {
	client  *http.Client
	maxSize int64
}

// NewDownloader creates a downloader. Non-positive arguments fall back to
// 60s and 100MB.
func NewDownloader(timeout time.Duration, maxSize int64) *Downloader {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if maxSize <= 0 {
		maxSize = 100 * 1024 * 1024
	}
	return &Downloader{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
		maxSize: maxSize,
	}
}

// ValidateURL reports whether raw is an absolute http(s) URL.
func ValidateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: fileUrl is required", domain.ErrInvalidRequest)
	}
	u, err := neturl.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: fileUrl must be an absolute HTTP or HTTPS URL", domain.ErrInvalidRequest)
	}
	return nil
}

// DownloadToFile copies the body at url into w and returns the number of bytes
// written. Any non-2xx status fails before a single byte is written.
func (d *Downloader) DownloadToFile(ctx context.Context, url string, w io.Writer) (int64, error) {
	if err := ValidateURL(url); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: HTTP %d", domain.ErrDownloadFailed, resp.StatusCode)
	}
	if resp.ContentLength > d.maxSize {
		return 0, fmt.Errorf("%w: %d bytes (max: %d)", domain.ErrTooLarge, resp.ContentLength, d.maxSize)
	}

	n, err := io.Copy(localWriter{w}, io.LimitReader(resp.Body, d.maxSize+1))
	if err != nil {
		var werr *writeError
		if errors.As(err, &werr) {
			return n, fmt.Errorf("%w: %w", domain.ErrInternal, werr.err)
		}
		return n, fmt.Errorf("%w: read body: %w", domain.ErrDownloadFailed, err)
	}
	if n > d.maxSize {
		return n, fmt.Errorf("%w: more than %d bytes", domain.ErrTooLarge, d.maxSize)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return n, fmt.Errorf("%w: incomplete download: expected %d bytes, got %d", domain.ErrDownloadFailed, resp.ContentLength, n)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: downloaded file is empty", domain.ErrDownloadFailed)
	}

	logging.Info("Download complete", "bytes", n, "url", TruncateURL(url))
	return n, nil
}

// writeError marks failures on the local side of the copy so they are
// reported as internal rather than download failures.
type writeError struct{ err error }

func (e *writeError) Error() string { return e.err.Error() }

type localWriter struct{ w io.Writer }

func (l localWriter) Write(p []byte) (int, error) {
	n, err := l.w.Write(p)
	if err != nil {
		return n, &writeError{err: err}
	}
	return n, nil
}

// TruncateURL shortens url for logging.
func TruncateURL(url string) string {
	if len(url) > 60 {
		return url[:57] + "..."
	}
	return url
}
