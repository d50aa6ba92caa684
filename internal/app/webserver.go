package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// shutdownGrace bounds how long closeWebServer waits for in-flight requests.
const shutdownGrace = 5 * time.Second

// healthHandler answers liveness probes.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// startWebServer runs the HTTP server exposing /health and the prometheus
// /metrics endpoint.
func (a *App) startWebServer(port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.Handle("/metrics", a.stats.Handler())

	addr := fmt.Sprintf(":%d", port)
	a.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		a.logger.Info("🩺 Health/metrics server starting", "address", fmt.Sprintf("http://localhost%s", addr))
		// ListenAndServe returns ErrServerClosed on graceful shutdown; only
		// other errors are real failures.
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Health/metrics server failed unexpectedly", "error", err)
		}
	}()
}

// closeWebServer drains the HTTP server before the app exits.
func (a *App) closeWebServer() {
	if a.httpServer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	a.logger.Info("🩺 Shutting down health/metrics server...")
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("Health/metrics server shutdown failed", "error", err)
		return
	}
	a.logger.Debug("Health/metrics server shut down gracefully.")
}
