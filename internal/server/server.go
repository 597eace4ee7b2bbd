// Package server runs the loopback HTTP server that receives OAuth redirects
// and exposes Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"done/backend"
	"done/internal/utils"
)

const (
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
)

// CallbackPath returns the redirect path served for a provider.
func CallbackPath(service backend.Service) string {
	return "/oauth/" + string(service) + "/callback"
}

// LoginResult reports the outcome of a redirect handled by the server.
type LoginResult struct {
	Service backend.Service
	Err     error
}

// Config holds the server dependencies.
type Config struct {
	// Addr is the loopback address to listen on.
	Addr string

	// Registry resolves the provider named in the callback path.
	Registry *backend.Registry

	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// Server is the loopback callback and metrics server.
type Server struct {
	cfg        Config
	router     chi.Router
	httpServer *http.Server

	mu        sync.Mutex
	listener  net.Listener
	listeners []chan LoginResult
}

// New builds the server and its routes. It does not listen yet.
func New(cfg Config) *Server {
	s := &Server{cfg: cfg}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logRequests)

	r.Get("/oauth/{service}/callback", s.handleCallback)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	s.router = r
	return s
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Subscribe returns a channel receiving every login result until ctx ends.
func (s *Server) Subscribe(ctx context.Context) <-chan LoginResult {
	ch := make(chan LoginResult, 1)
	s.mu.Lock()
	s.listeners = append(s.listeners, ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l == ch {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				break
			}
		}
	}()
	return ch
}

func (s *Server) publish(res LoginResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.listeners {
		select {
		case l <- res:
		default:
		}
	}
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	service := backend.Service(chi.URLParam(r, "service"))
	p, ok := s.cfg.Registry.Get(service)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown provider %q", service), http.StatusNotFound)
		return
	}

	err := p.HandleURIParams(r.Context(), r.URL)
	s.publish(LoginResult{Service: service, Err: err})
	if err != nil {
		utils.Errorf("Login to %s failed: %v", service, err)
		status := http.StatusInternalServerError
		if errors.Is(err, backend.ErrAuth) {
			status = http.StatusBadRequest
		}
		writePage(w, status, "Login failed", err.Error())
		return
	}

	utils.Infof("Logged in to %s", service)
	writePage(w, http.StatusOK, "Logged in", "You can close this window and return to the terminal.")
}

func writePage(w http.ResponseWriter, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "<!doctype html><title>%s</title><h1>%s</h1><p>%s</p>\n",
		html.EscapeString(title), html.EscapeString(title), html.EscapeString(body))
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		utils.Debugf("%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	srv := s.httpServer
	s.mu.Unlock()

	utils.Debugf("Serving callbacks on %s", ln.Addr())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Errorf("Callback server stopped: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
