package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Ojasdixit/boltdiy/internal/identity"
	"github.com/Ojasdixit/boltdiy/internal/ops"
	"github.com/Ojasdixit/boltdiy/internal/sandbox"
)

// NewServer creates and configures the HTTP server.
func NewServer(facade *ops.Facade, version, bind string, port int, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           NewHandler(facade, version, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewHandler builds the routed handler, including the identity and security
// header middleware.
func NewHandler(facade *ops.Facade, version string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		facade:    facade,
		sandboxes: sandbox.NewManager(facade, facade.Config(), sandbox.WithManagerLogger(logger)),
		renderer:  NewRenderer(version, logger),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/preview", http.StatusFound)
	})
	mux.HandleFunc("PUT /code", h.HandleCodeSave)
	mux.HandleFunc("GET /code", h.HandleCodeLoad)
	mux.HandleFunc("GET /code/all", h.HandleCodeList)
	mux.HandleFunc("POST /sessions", h.HandleSessionCreate)
	mux.HandleFunc("GET /sessions", h.HandleSessionList)
	mux.HandleFunc("POST /sandboxes/ensure", h.HandleSandboxEnsure)
	mux.HandleFunc("GET /sandboxes/active", h.HandleSandboxActive)
	mux.HandleFunc("GET /sandboxes", h.HandleSandboxList)
	mux.HandleFunc("POST /sandboxes/sweep", h.HandleSandboxSweep)
	mux.HandleFunc("POST /sandboxes/{id}/deactivate", h.HandleSandboxDeactivate)
	mux.HandleFunc("GET /preview", h.HandlePreview)
	mux.HandleFunc("POST /preview", h.HandlePreviewStart)

	return securityHeaders(withPrincipal(h.renderer, mux))
}

// withPrincipal resolves the X-User-ID header into the request context.
// A missing header leaves the request anonymous; a malformed one is rejected.
func withPrincipal(renderer *Renderer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		p, err := identity.Parse(raw, "")
		if err != nil {
			renderer.renderError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.WithPrincipal(r.Context(), p)))
	})
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run serves srv until it fails, ctx is cancelled, or the process receives
// SIGINT/SIGTERM, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("boltdiy server running", "addr", "http://"+srv.Addr)
	if strings.HasPrefix(srv.Addr, "0.0.0.0:") || strings.HasPrefix(srv.Addr, "[::]:") || strings.HasPrefix(srv.Addr, ":") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
