package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helvemed/meddiff/internal/config"
)

func setupReportDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sl-diff_a-b.json"), []byte(`{"changes":[]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "med-drugs-update_x.html"), []byte("<html></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))

	prev := cfg
	cfg = &config.Config{}
	cfg.Data.DiffDir = dir
	t.Cleanup(func() { cfg = prev })

	return dir
}

func TestListReports(t *testing.T) {
	setupReportDir(t)

	rec := httptest.NewRecorder()
	listReports(rec, httptest.NewRequest(http.MethodGet, "/reports", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"sl-diff_a-b.json", "med-drugs-update_x.html"}, body["reports"])
}

func TestGetReport(t *testing.T) {
	setupReportDir(t)

	router := chi.NewRouter()
	router.Get("/reports/{name}", getReport)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/sl-diff_a-b.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "changes")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/absent.json", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGracefulShutdownDrainsAfterCancel(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		gracefulShutdown(ctx, srv)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete after context cancellation")
	}

	// The drain ran under its own fresh deadline even though ctx was already
	// cancelled, so the server ends up closed, not aborted.
	assert.ErrorIs(t, srv.ListenAndServe(), http.ErrServerClosed)
}

func TestGetReportRejectsTraversal(t *testing.T) {
	setupReportDir(t)

	router := chi.NewRouter()
	router.Get("/reports/{name}", getReport)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reports/"+"%2e%2e%2fconfig.yaml", nil)
	router.ServeHTTP(rec, req)
	assert.NotEqual(t, http.StatusOK, rec.Code)
}
