// Package storage keeps rendered application documents and hands back the URL
// they are served from.
package storage

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore writes documents below a directory and exposes them under a
// base URL, e.g. "/documents" or "https://cdn.example.com/docs".
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("document directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create document directory: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put stores data under name, replacing any previous document of that name.
// The write goes through a temp file so readers never see a partial document.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp document: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close document: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, clean)); err != nil {
		return "", fmt.Errorf("move document into place: %w", err)
	}

	return s.URL(clean), nil
}

func (s *LocalStore) URL(name string) string {
	return s.baseURL + "/" + name
}

// Handler serves stored documents; mount it under the base URL path.
func (s *LocalStore) Handler() http.Handler {
	return http.FileServer(http.Dir(s.dir))
}

// Clear removes every stored document and reports how many were deleted.
func (s *LocalStore) Clear() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read document directory: %w", err)
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			return removed, fmt.Errorf("remove document %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}

func cleanName(name string) (string, error) {
	clean := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if clean == "." || clean == "/" || clean == "" || strings.HasPrefix(clean, ".") {
		return "", fmt.Errorf("invalid document name %q", name)
	}
	return clean, nil
}
