package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultFetchTimeout  = 30 * time.Second
	defaultMaxFetchBytes = 20 << 20
	userAgent            = "Mozilla/5.0 (compatible; grant-drafter/1.0)"
)

// Fetcher performs the single GET an extractor is allowed per source.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

type fetched struct {
	URL         string
	ContentType string
	Data        []byte
}

// NewFetcher builds a Fetcher. A nil client gets a timeout-bound default and
// a non-positive maxBytes uses 20MiB.
func NewFetcher(client *http.Client, maxBytes int64) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxFetchBytes
	}
	return &Fetcher{client: client, maxBytes: maxBytes}
}

func (f *Fetcher) fetch(ctx context.Context, target string) (fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fetched{}, sourceErr(FetchError, target, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return fetched{}, sourceErr(FetchError, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fetched{}, &SourceError{Kind: FetchError, Source: target, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return fetched{}, sourceErr(FetchError, target, fmt.Errorf("read body: %w", err))
	}
	if int64(len(data)) > f.maxBytes {
		return fetched{}, sourceErr(FetchError, target, errors.New("response body exceeds size limit"))
	}

	return fetched{URL: target, ContentType: resp.Header.Get("Content-Type"), Data: data}, nil
}
