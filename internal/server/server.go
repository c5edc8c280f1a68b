// Package server exposes the engine over HTTP: health probes, Prometheus
// metrics, and a small JSON API used by the game-facing integration.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stallwart/shopkeeper/internal/conversation"
	"github.com/stallwart/shopkeeper/internal/database"
	"github.com/stallwart/shopkeeper/internal/logger"
	"github.com/stallwart/shopkeeper/internal/metrics"
	"github.com/stallwart/shopkeeper/internal/repository"
	"github.com/stallwart/shopkeeper/internal/shop"
	"github.com/stallwart/shopkeeper/internal/stats"
	"github.com/stallwart/shopkeeper/internal/template"
)

type Server struct {
	httpServer *http.Server
	dbPool     database.Pool
}

// NewServer wires the router. Every route that mutates shop state goes
// through the manager, never directly at the entities.
func NewServer(port int, version string, dbPool database.Pool, mgr *shop.Manager, tracker *conversation.Tracker, templates *template.Manager, transactions repository.Transactions, statsService stats.Service) *Server {
	r := chi.NewRouter()

	r.Use(metrics.Middleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handleHealthz())
	r.Get("/readyz", handleReadyz(dbPool))
	r.Get("/version", handleVersion(version))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/shops", func(r chi.Router) {
			r.Get("/", handleListShops(mgr))
			r.Post("/", handleCreateShop(mgr))
			r.Route("/{shopID}", func(r chi.Router) {
				r.Get("/", handleGetShop(mgr))
				r.Delete("/", handleDeleteShop(mgr))
				r.Post("/renew", handleRenewShop(mgr))
				r.Post("/items", handleAddItem(mgr))
				r.Delete("/items/{itemID}", handleRemoveItem(mgr))
				r.Post("/buy", handleBuy(mgr))
				r.Post("/sell", handleSell(mgr))
				r.Get("/transactions", handleShopTransactions(transactions))
			})
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", handleListTemplates(templates))
			r.Post("/{templateID}/apply", handleApplyTemplate(templates))
			r.Post("/{templateID}/instantiate", handleInstantiateTemplate(templates))
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/shops/top", handleTopShops(statsService))
			r.Get("/shops/{shopID}", handleShopSummary(statsService))
			r.Get("/players/{playerID}", handlePlayerSummary(statsService))
		})

		r.Post("/conversation", handleConversation(tracker))
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		dbPool: dbPool,
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.written {
		rw.statusCode = statusCode
		rw.written = true
		rw.ResponseWriter.WriteHeader(statusCode)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Health and metrics probes are too chatty to log.
		if strings.HasPrefix(r.URL.Path, "/healthz") ||
			strings.HasPrefix(r.URL.Path, "/readyz") ||
			strings.HasPrefix(r.URL.Path, "/metrics") {
			next.ServeHTTP(w, r)
			return
		}

		requestID := logger.GenerateRequestID()
		ctx := logger.WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)

		log := logger.FromContext(ctx)
		log.Info("Request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr)

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		log.Info("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds())
	})
}

// Start starts the server
func (s *Server) Start() error {
	slog.Default().Info("Server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
