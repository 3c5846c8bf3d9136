// Package fileserver serves a local directory read-only over TLS, using the
// certificate the provisioning step produced.
package fileserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/net/netutil"
)

// DefaultAddr is the reference listen address: port 4443 on all interfaces.
const DefaultAddr = ":4443"

// Config describes the file server. Zero values fall back to the reference
// behaviour: all interfaces on port 4443, the current working directory,
// TLS 1.2 as the floor, no CORS and no connection cap.
type Config struct {
	Addr           string
	Root           string
	Certificate    tls.Certificate
	MinVersion     uint16
	AllowedOrigins []string
	MaxConns       int
}

// Server is a read-only HTTPS static file server.
type Server struct {
	cfg      Config
	log      zerolog.Logger
	srv      *http.Server
	listener net.Listener
}

// New validates cfg and builds the server without binding the listener.
func New(cfg Config, log zerolog.Logger) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}

	if len(cfg.Certificate.Certificate) == 0 {
		return nil, errors.New("a server certificate is required")
	}

	info, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("root directory not found at %s: %w", cfg.Root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", cfg.Root)
	}

	srv := configureHTTPServer(cfg.Addr, newHandler(cfg, log))
	srv.TLSConfig = &tls.Config{
		Certificates: []tls.Certificate{cfg.Certificate},
		MinVersion:   cfg.MinVersion,
	}

	return &Server{cfg: cfg, log: log, srv: srv}, nil
}

// newHandler assembles the middleware chain around the static file handler.
func newHandler(cfg Config, log zerolog.Logger) http.Handler {
	var handler http.Handler = http.FileServer(http.Dir(cfg.Root))
	handler = etagHandler(cfg.Root, handler)
	handler = gzhttp.GzipHandler(handler)
	handler = readOnlyHandler(handler)

	if len(cfg.AllowedOrigins) > 0 {
		handler = withCORS(cfg.AllowedOrigins, handler)
	}

	handler = accessLogHandler()(handler)
	handler = requestIDHandler(handler)
	handler = hlog.NewHandler(log)(handler)

	return handler
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}

// Start binds the listener without accepting connections, so callers can
// learn the bound address before the first request.
func (s *Server) Start() error {
	if s.listener != nil {
		return nil
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}

	if s.cfg.MaxConns > 0 {
		listener = netutil.LimitListener(listener, s.cfg.MaxConns)
	}

	s.listener = listener
	return nil
}

// Serve accepts connections until Shutdown or a fatal listener error. Like
// http.Server.Serve it always returns a non-nil error; after Shutdown that
// error is http.ErrServerClosed.
func (s *Server) Serve() error {
	if err := s.Start(); err != nil {
		return err
	}

	s.log.Info().
		Str("addr", s.Addr()).
		Str("root", s.cfg.Root).
		Msg("Serving directory over TLS")

	return s.srv.ServeTLS(s.listener, "", "")
}

// Shutdown stops the server, waiting for in-flight requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Root returns the directory being served.
func (s *Server) Root() string {
	return s.cfg.Root
}

// Addr returns the bound listen address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}

	return s.cfg.Addr
}

// URL returns a base URL for the server reachable from the local host.
// Unspecified and loopback bind addresses are reported as localhost, matching
// the name the served certificate carries.
func (s *Server) URL() string {
	host, port, err := net.SplitHostPort(s.Addr())
	if err != nil {
		return "https://" + s.Addr()
	}

	if ip := net.ParseIP(host); host == "" || (ip != nil && (ip.IsUnspecified() || ip.IsLoopback())) {
		host = "localhost"
	}

	return "https://" + net.JoinHostPort(host, port)
}
