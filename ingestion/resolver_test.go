package ingestion_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/grant-drafter/ingestion"
)

func TestResolveWithoutCheck(t *testing.T) {
	r := ingestion.NewResolver(nil, time.Second, nil)
	ctx := context.Background()

	cases := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{raw: "https://example.com/grants?id=7", want: "https://example.com/grants?id=7", wantOK: true},
		{raw: "http://example.com", want: "http://example.com", wantOK: true},
		{raw: "example.com", want: "https://example.com", wantOK: true},
		{raw: "  www.example.org/guide.pdf ", want: "https://www.example.org/guide.pdf", wantOK: true},
		{raw: "localhost:8080/form", want: "https://localhost:8080/form", wantOK: true},
		{raw: "", wantOK: false},
		{raw: "   ", wantOK: false},
		{raw: "not a host", wantOK: false},
	}

	for _, tc := range cases {
		got, ok := r.Resolve(ctx, tc.raw, false)
		assert.Equal(t, tc.wantOK, ok, "raw %q", tc.raw)
		assert.Equal(t, tc.want, got, "raw %q", tc.raw)
	}
}

func TestResolveCheckFallsBackToGet(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		methods = append(methods, req.Method)
		if req.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		assert.Equal(t, "bytes=0-0", req.Header.Get("Range"))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	r := ingestion.NewResolver(srv.Client(), time.Second, nil)
	got, ok := r.Resolve(context.Background(), srv.URL, true)

	require.True(t, ok)
	assert.Equal(t, srv.URL, got)
	assert.Equal(t, []string{http.MethodHead, http.MethodGet}, methods)
}

func TestResolveCheckFallsBackToGetAfterHeadTimeout(t *testing.T) {
	release := make(chan struct{})
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodHead {
			select {
			case <-req.Context().Done():
			case <-release:
			}
			return
		}
		gets.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	r := ingestion.NewResolver(srv.Client(), 200*time.Millisecond, nil)
	got, ok := r.Resolve(context.Background(), srv.URL, true)

	require.True(t, ok)
	assert.Equal(t, srv.URL, got)
	assert.Equal(t, int32(1), gets.Load())
}

func TestResolveCheckTriesHTTPAfterHTTPS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bare := strings.TrimPrefix(srv.URL, "http://")
	r := ingestion.NewResolver(srv.Client(), time.Second, nil)

	got, ok := r.Resolve(context.Background(), bare, true)
	require.True(t, ok)
	assert.Equal(t, "http://"+bare, got)
}

func TestResolveCheckUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := ingestion.NewResolver(srv.Client(), time.Second, nil)
	got, ok := r.Resolve(context.Background(), srv.URL+"/missing", true)
	assert.False(t, ok)
	assert.Empty(t, got)
}
