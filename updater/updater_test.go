package updater

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"haruki-cutscenes/config"
	"haruki-cutscenes/utils/keys"
)

const table = `{"list": [{"version": "1.0", "videos": ["MDAQ001_OP"], "key": 1}]}`

func newTestUpdater(t *testing.T, url string) (*KeyTableUpdater, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "versions.json")
	u := NewKeyTableUpdater(context.Background(), config.KeyTableConfig{
		Path:      path,
		Source:    config.KeySourceHTTP,
		URL:       url,
		UserAgent: "GICutscenes",
	}, "")
	u.retryDelay = 0
	return u, path
}

func TestUpdateHTTP(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if ua := r.Header.Get("User-Agent"); ua != "GICutscenes" {
			t.Errorf("User-Agent = %q, want GICutscenes", ua)
		}
		_, _ = w.Write([]byte(table))
	}))
	defer srv.Close()

	u, path := newTestUpdater(t, srv.URL)
	got, err := u.Update()
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Len() != 1 {
		t.Errorf("Len() = %d, want 1", got.Len())
	}
	if calls.Load() != 2 {
		t.Errorf("requests = %d, want 2 (one retry after 502)", calls.Load())
	}
	saved, err := keys.LoadTable(path)
	if err != nil || saved.Len() != 1 {
		t.Errorf("saved table = %v, %v", saved, err)
	}
}

func TestUpdateGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	u, path := newTestUpdater(t, srv.URL)
	if _, err := u.Update(); err == nil {
		t.Fatal("Update() error = nil, want error")
	}
	if calls.Load() != 4 {
		t.Errorf("requests = %d, want 4", calls.Load())
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("table written after failure: %v", err)
	}
}

func TestUpdateRejectsInvalidTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>rate limited</html>`))
	}))
	defer srv.Close()

	u, path := newTestUpdater(t, srv.URL)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(table), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := u.Update(); !errors.Is(err, keys.ErrKeyTableUnreadable) {
		t.Errorf("Update() error = %v, want ErrKeyTableUnreadable", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != table {
		t.Errorf("local table replaced by an invalid download")
	}
}

func TestUpdateNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	u, _ := newTestUpdater(t, srv.URL)
	if _, err := u.Update(); err == nil {
		t.Error("Update() error = nil, want error for 404")
	}
}

func TestFetchUnknownSource(t *testing.T) {
	u := NewKeyTableUpdater(context.Background(), config.KeyTableConfig{Source: "ftp"}, "")
	if _, err := u.Fetch(); err == nil {
		t.Error("Fetch() error = nil, want error")
	}
}
