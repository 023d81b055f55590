// Package server is the HTTP(S) front end: a single chi-routed listener
// that hands every accepted POST / straight to the single-slot dispatcher
// (see pkg/bridge). Connection-level queuing is net/http's concern; this
// package only authenticates, terminates TLS, and moves bodies.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/mcphost/bridge/pkg/apikey"
	"github.com/mcphost/bridge/pkg/bridge"
	"github.com/mcphost/bridge/pkg/bridgeerr"
	"github.com/mcphost/bridge/pkg/logger"
	"github.com/mcphost/bridge/pkg/protocol"
)

const (
	bindRetries  = 5
	bindBackoff  = time.Second
	shutdownWait = 5 * time.Second
	maxBodyBytes = 4 << 20 // generous cap on inbound body; the 256KiB cap is on the response
)

// Config configures the listener. BindAddress is loopback-only
// ("127.0.0.1") unless remote access is enabled, in which case it is the
// wildcard address.
type Config struct {
	BindAddress string
	Port        int
	APIKey      string // empty disables bearer auth
	CertPEM     string // both empty disables TLS
	KeyPEM      string

	// MetricsHandler, if set, is mounted at GET /metrics unauthenticated,
	// alongside the JSON-RPC POST /. Nil disables the endpoint.
	MetricsHandler http.Handler
}

// Server is the HTTP(S) front-end.
type Server struct {
	cfg        Config
	dispatcher *bridge.Dispatcher
	httpServer *http.Server
}

// New constructs a Server. Call Run to start serving.
func New(cfg Config, dispatcher *bridge.Dispatcher) *Server {
	s := &Server{cfg: cfg, dispatcher: dispatcher}
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port),
		Handler: s.routes(),
	}
	return s
}

// TLSAvailable reports whether this build supports TLS termination. Go's
// standard library always carries crypto/tls, so this is always true; the
// function exists for callers that branch on TLS support before enabling
// remote access.
func TLSAvailable() bool { return true }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(corsHeaders)

	r.Options("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/", s.authenticate(s.handlePost))
	if s.cfg.MetricsHandler != nil {
		r.Get("/metrics", s.cfg.MetricsHandler.ServeHTTP)
	}
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
	return r
}

// corsHeaders applies the fixed CORS policy to every response.
func corsHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		next.ServeHTTP(w, r)
	})
}

// authenticate enforces the optional bearer token. A missing or mismatched
// token when auth is enabled yields 401 with a JSON-RPC -32600 envelope,
// id=null.
func (s *Server) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey == "" {
			next(w, r)
			return
		}

		got := bearerToken(r.Header.Get("Authorization"))
		if got == "" || !apikey.Equal(s.cfg.APIKey, got) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			resp := protocol.NewErrorResponse(protocol.NullID(), protocol.CodeInvalidRequest, "Unauthorized", nil)
			raw, _ := resp.Marshal()
			_, _ = w.Write(raw)
			return
		}
		next(w, r)
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return ""
	}
	return header[len(prefix):]
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		resp := protocol.NewErrorResponse(protocol.NullID(), protocol.CodeParseError, fmt.Sprintf("Parse error: %v", err), nil)
		raw, _ := resp.Marshal()
		_, _ = w.Write(raw)
		return
	}

	resp := s.dispatcher.Submit(r.Context(), body)
	w.Header().Set("Content-Type", "application/json")
	if resp == nil {
		// Notification: zero response bytes.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	_, _ = w.Write(resp)
}

// Run binds the listener (retrying on contention) and serves until ctx is
// canceled, then drains active connections. The dispatcher's tick loop
// runs for the same lifetime, started and stopped alongside the listener.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.listenWithRetry(ctx)
	if err != nil {
		return bridgeerr.NewPortExhaustedError(fmt.Sprintf("failed to bind %s", s.httpServer.Addr), err)
	}

	if s.cfg.CertPEM != "" && s.cfg.KeyPEM != "" {
		cert, err := tls.X509KeyPair([]byte(s.cfg.CertPEM), []byte(s.cfg.KeyPEM))
		if err != nil {
			return bridgeerr.NewCertificateError("invalid TLS certificate/key pair", err)
		}
		ln = tls.NewListener(ln, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
	}

	s.dispatcher.Start(ctx)
	defer s.dispatcher.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	logger.Infof("server: listening on %s", s.httpServer.Addr)
	return g.Wait()
}

func (s *Server) listenWithRetry(ctx context.Context) (net.Listener, error) {
	op := func() (net.Listener, error) {
		ln, err := net.Listen("tcp", s.httpServer.Addr)
		if err != nil {
			logger.Warnf("server: bind %s failed, retrying: %v", s.httpServer.Addr, err)
			return nil, err
		}
		return ln, nil
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(bindBackoff)),
		backoff.WithMaxTries(bindRetries),
	)
}
