// Package web serves the bookmark JSON API and stored enrichment assets.
package web

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/seckatie/snapmark/internal/core/db"
	"github.com/seckatie/snapmark/internal/metrics"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

// Store is the bookmark persistence the API needs.
type Store interface {
	AddBookmark(url, title string, createdAt time.Time) (int64, error)
	GetBookmark(id int64) (db.Bookmark, error)
	ListBookmarks(limit int) ([]db.Bookmark, error)
	DeleteBookmark(id int64) (bool, error)
}

// Assets opens stored screenshots and post images.
type Assets interface {
	OpenScreenshot(id int64) (*os.File, error)
	OpenImage(id int64, name string) (*os.File, error)
}

type Server struct {
	store  Store
	assets Assets
	logger *zap.Logger
	now    func() time.Time
	router chi.Router
}

// NewServer constructs a Server with middleware and routes.
func NewServer(store Store, assets Assets, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	ws := &Server{
		store:  store,
		assets: assets,
		logger: logger,
		now:    time.Now,
	}
	ws.router = ws.routes()
	return ws
}

func (ws *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(ws.logger))
	r.Use(recoverMiddleware(ws.logger))
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", ws.handleHealthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/bookmarks", func(r chi.Router) {
			r.Get("/", ws.listBookmarks)
			r.Post("/", ws.createBookmark)
			r.Get("/{id}", ws.getBookmark)
			r.Delete("/{id}", ws.deleteBookmark)
		})
		r.Get("/screenshots/{id}", ws.serveScreenshot)
		r.Get("/linkedin-images/{id}/{filename}", ws.serveImage)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Handler returns the Router for use with http.Server.
func (ws *Server) Handler() http.Handler {
	return ws.router
}

// Run serves on addr until ctx is done, then shuts down gracefully within
// shutdownTimeout.
func (ws *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		ws.logger.Info("starting web server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	ws.logger.Info("shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (ws *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
