package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve generated diff reports over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		router := chi.NewRouter()
		router.Use(middleware.RequestID)
		router.Use(middleware.RedirectSlashes)
		router.Use(middleware.Recoverer)

		router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})

		router.Get("/reports", listReports)
		router.Get("/reports/{name}", getReport)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		go gracefulShutdown(ctx, srv)

		zap.L().Info("starting report server",
			zap.Int("port", port),
			zap.String("dir", cfg.Data.DiffDir),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

const shutdownGrace = 10 * time.Second

// gracefulShutdown drains the server once ctx is cancelled. The signal
// context is already done at that point, so the drain runs under its own
// deadline.
func gracefulShutdown(ctx context.Context, srv *http.Server) {
	<-ctx.Done()
	zap.L().Info("shutting down server")

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		zap.L().Warn("server shutdown incomplete", zap.Error(err))
	}
}

// listReports returns the generated report filenames, newest first.
func listReports(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(cfg.Data.DiffDir)
	if err != nil {
		http.Error(w, `{"error":"report directory unavailable"}`, http.StatusInternalServerError)
		return
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".json" || ext == ".html" {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"reports": names})
}

// getReport serves one report file by name. Path separators are rejected so
// only files directly in the report directory are reachable.
func getReport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		http.Error(w, `{"error":"invalid report name"}`, http.StatusBadRequest)
		return
	}

	path := filepath.Join(cfg.Data.DiffDir, name)
	if _, err := os.Stat(path); err != nil {
		http.Error(w, `{"error":"report not found"}`, http.StatusNotFound)
		return
	}

	http.ServeFile(w, r, path)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
