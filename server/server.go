package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"schls/core/downloader"
	"schls/logger"
	"schls/repository"
)

// Server exposes downloads over HTTP.
type Server struct {
	svc      *downloader.Service
	history  repository.HistoryRepository
	jobs     *jobRegistry
	upgrader websocket.Upgrader

	// baseCtx parents every job so that shutdown cancels them all.
	baseCtx context.Context
	stop    context.CancelFunc
}

// New creates a Server. history may be nil.
func New(svc *downloader.Service, history repository.HistoryRepository) *Server {
	ctx, stop := context.WithCancel(context.Background())
	return &Server{
		svc:     svc,
		history: history,
		jobs:    newJobRegistry(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		baseCtx: ctx,
		stop:    stop,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	router.HandleFunc("/api/me", s.me).Methods(http.MethodGet)
	router.HandleFunc("/api/downloads", s.createDownload).Methods(http.MethodPost)
	router.HandleFunc("/api/downloads", s.listDownloads).Methods(http.MethodGet)
	router.HandleFunc("/api/downloads/{id}", s.getDownload).Methods(http.MethodGet)
	router.HandleFunc("/api/downloads/{id}", s.cancelDownload).Methods(http.MethodDelete)
	router.HandleFunc("/api/ws/downloads/{id}", s.streamEvents).Methods(http.MethodGet)

	return router
}

// ListenAndServe serves until ctx is done, then cancels running jobs and
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Router(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", logger.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")
	s.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close cancels every running job.
func (s *Server) Close() {
	s.jobs.cancelAll()
	s.stop()
}
