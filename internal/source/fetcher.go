// Package source fetches raw statistics exports from participant URLs.
package source

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tradelab-io/statsync/pkg/errors"
)

// Fetcher retrieves the raw export text behind a participant's URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher fetches exports over plain HTTP GET. Failures are never
// retried here; a failed fetch is reported for that participant and the
// batch moves on.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher creates a fetcher with the given per-request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "text/csv, text/plain, */*")

	return &HTTPFetcher{client: client}
}

// Fetch implements Fetcher. Any transport error or non-2xx status is a
// fetch failure.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", errors.Wrapf(errors.ErrCodeFetchFailed, err, "failed to fetch export from %s", url)
	}

	if !resp.IsSuccess() {
		return "", errors.Newf(errors.ErrCodeFetchFailed, "source %s returned status %d", url, resp.StatusCode())
	}

	return string(resp.Body()), nil
}
