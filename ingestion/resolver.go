package ingestion

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultReachTimeout = 3 * time.Second
	reachBodyLimit      = 512
)

// Resolver coerces loosely formatted user links into absolute URLs.
type Resolver struct {
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

func NewResolver(client *http.Client, timeout time.Duration, logger *zap.Logger) *Resolver {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = defaultReachTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{client: client, timeout: timeout, logger: logger}
}

// Resolve tries raw as-is, then with an https:// prefix, then http://, and
// returns the first candidate that parses as an absolute http(s) URL and, when
// check is set, answers a reachability check. ok is false when every candidate
// fails; callers skip the source in that case.
func (r *Resolver) Resolve(ctx context.Context, raw string, check bool) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	for _, candidate := range candidates(raw) {
		if !isAbsoluteHTTP(candidate) {
			continue
		}
		if !check || r.reachable(ctx, candidate) {
			return candidate, true
		}
		r.logger.Debug("url candidate unreachable", zap.String("url", candidate))
	}
	return "", false
}

func candidates(raw string) []string {
	out := []string{raw}
	if !strings.HasPrefix(strings.ToLower(raw), "https://") {
		out = append(out, "https://"+stripScheme(raw))
	}
	if !strings.HasPrefix(strings.ToLower(raw), "http://") {
		out = append(out, "http://"+stripScheme(raw))
	}
	return out
}

// stripScheme drops a leading "scheme://" or a bare "//" so that prefixes are
// not stacked on top of an existing one.
func stripScheme(raw string) string {
	if idx := strings.Index(raw, "://"); idx >= 0 && !strings.ContainsAny(raw[:idx], "/?#.") {
		return raw[idx+3:]
	}
	return strings.TrimPrefix(raw, "//")
}

func isAbsoluteHTTP(candidate string) bool {
	parsed, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	host := parsed.Hostname()
	return host != "" && !strings.ContainsAny(host, " \t")
}

// reachable issues HEAD and falls back to a ranged GET when the server rejects
// HEAD, errors or times out. Each attempt gets its own timeout.
func (r *Resolver) reachable(ctx context.Context, target string) bool {
	if status, err := r.attempt(ctx, http.MethodHead, target); err == nil && status < 400 {
		return true
	}
	status, err := r.attempt(ctx, http.MethodGet, target)
	return err == nil && status < 400
}

func (r *Resolver) attempt(ctx context.Context, method, target string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, reachBodyLimit))
	return resp.StatusCode, nil
}
