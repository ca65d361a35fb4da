package web

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/cjeanneret/fieldtools/internal/camera"
)

// MutationsPerMinute limits, per client IP, the requests that change the store.
const MutationsPerMinute = 60

// Server wraps the HTTP server and handlers.
type Server struct {
	addr          string
	handlers      *Handlers
	log           zerolog.Logger
	mutationLimit int
}

// NewServer creates a server configured for the given address and dependencies.
func NewServer(addr string, cameras *camera.Store, events *ChangeBroadcaster, defaults DOFDefaults, log zerolog.Logger) (*Server, error) {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("web: sub static fs: %w", err)
	}

	return &Server{
		addr:          addr,
		handlers:      NewHandlers(cameras, events, defaults, subFS, log),
		log:           log,
		mutationLimit: MutationsPerMinute,
	}, nil
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()
	// one limiter shared by every mutating route
	limited := httprate.Limit(s.mutationLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))
	mutate := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, limited(h))
	}

	mux.HandleFunc("GET /cameras", s.handlers.HandleList)
	mutate("POST /cameras", s.handlers.HandleCreate)
	mux.HandleFunc("GET /cameras/count", s.handlers.HandleCount)
	mutate("POST /cameras/move", s.handlers.HandleMove)
	mux.HandleFunc("GET /cameras/selected", s.handlers.HandleSelected)
	mutate("PUT /cameras/selected", s.handlers.HandleSelect)
	mux.HandleFunc("GET /cameras/index/{index}", s.handlers.HandleAtIndex)
	mux.HandleFunc("GET /cameras/{id}", s.handlers.HandleGet)
	mutate("PUT /cameras/{id}", s.handlers.HandleUpdate)
	mutate("DELETE /cameras/{id}", s.handlers.HandleDelete)
	mux.HandleFunc("GET /coc/presets", s.handlers.HandlePresets)
	mux.HandleFunc("GET /dof", s.handlers.HandleDOF)
	mux.HandleFunc("GET /events/stream", s.handlers.HandleEventStream)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(s.handlers.staticFS))))
	mux.HandleFunc("GET /{$}", s.handlers.ServeIndex) // exact match for root only

	return mux
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("web server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		s.log.Info().Msg("web server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
