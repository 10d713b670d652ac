package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/arrest-news-cli/internal/batch"
	"github.com/sells-group/arrest-news-cli/internal/monitoring"
)

// progressSource is satisfied by *batch.Runner.
type progressSource interface {
	Progress() batch.Progress
}

// statusRouter serves read-only run status.
func statusRouter(src progressSource, metrics *monitoring.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/progress", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, src.Progress())
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("status: write response", zap.Error(err))
	}
}

func newStatusServer(port int, src progressSource, metrics *monitoring.Metrics) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           statusRouter(src, metrics),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// serveStatus runs srv until ctx is done.
func serveStatus(ctx context.Context, srv *http.Server) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("status server listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !eris.Is(err, http.ErrServerClosed) {
		zap.L().Error("status server failed", zap.Error(err))
	}
}
