// Package server is the admission server (C10, §4.10): a single TCP
// listener that classifies each connection's handshake, rejects scan
// traffic and over-cap load, and spawns one call session per accepted
// call. Grounded on NeboLoop-nebo's gateway connection-accept loop (rate
// limiting via golang.org/x/time/rate, a bounded worker count) adapted
// from its WebSocket device gateway to a raw AudioSocket TCP listener.
package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lokutor-ai/voicedesk/pkg/audiosocket"
)

// Logger is the narrow logging surface this package needs.
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

// HandshakeReadTimeout bounds how long the admission server waits for the
// first handshake bytes before giving up on a connection.
const HandshakeReadTimeout = 5 * time.Second

// Config carries the admission knobs from §6/§4.10.
type Config struct {
	Addr               string
	MaxConcurrentCalls int
	AcceptRatePerSec   float64 // 0 disables rate limiting
	AcceptBurst        int
}

// Spawn hands an accepted, handshaken connection off to a call session. It
// must block until the call is completely done; the server tracks it via
// its own WaitGroup and the concurrency semaphore.
type Spawn func(ctx context.Context, conn net.Conn, callID string)

// Server owns the listener and the admission policy around it.
type Server struct {
	cfg     Config
	logger  Logger
	spawn   Spawn
	limiter *rate.Limiter

	listener net.Listener

	sem chan struct{}
	wg  sync.WaitGroup

	mu       sync.Mutex
	draining bool
}

// New constructs a Server. logger may be nil.
func New(cfg Config, spawn Spawn, logger Logger) *Server {
	if logger == nil {
		logger = noopLogger{}
	}
	if cfg.MaxConcurrentCalls <= 0 {
		cfg.MaxConcurrentCalls = 20
	}

	var limiter *rate.Limiter
	if cfg.AcceptRatePerSec > 0 {
		burst := cfg.AcceptBurst
		if burst <= 0 {
			burst = cfg.MaxConcurrentCalls
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRatePerSec), burst)
	}

	return &Server{
		cfg:     cfg,
		logger:  logger,
		spawn:   spawn,
		limiter: limiter,
		sem:     make(chan struct{}, cfg.MaxConcurrentCalls),
	}
}

// ListenAndServe binds the listener and runs the accept loop until ctx is
// cancelled or Shutdown is called. It always blocks until every in-flight
// call has drained (§4.10 "let in-flight calls drain").
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.logger.Info("admission server listening", "addr", s.cfg.Addr)

	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.wg.Wait()
			if s.isDraining() {
				return nil
			}
			return err
		}
		s.acceptOne(ctx, conn)
	}
}

func (s *Server) isDraining() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draining
}

// Shutdown stops accepting new connections. In-flight calls are left to
// finish on their own; callers should follow with ListenAndServe's return
// (which blocks on the drain) or Wait directly.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

// Wait blocks until every admitted call has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Addr returns the bound listener address, or nil before ListenAndServe
// has bound one. Mainly useful in tests that bind to ":0".
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptOne(ctx context.Context, conn net.Conn) {
	if s.isDraining() {
		_ = conn.Close()
		return
	}

	if s.limiter != nil && !s.limiter.Allow() {
		s.logger.Warn("rejecting connection, accept rate exceeded")
		_ = conn.Close()
		return
	}

	select {
	case s.sem <- struct{}{}:
	default:
		s.logger.Warn("rejecting call, at capacity", "cap", s.cfg.MaxConcurrentCalls)
		_ = conn.Close()
		return
	}

	callID, err := s.handshake(conn)
	if err != nil {
		<-s.sem
		if !errors.Is(err, audiosocket.ErrScanTraffic) {
			s.logger.Warn("handshake failed", "error", err)
		}
		_ = conn.Close()
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.sem }()
		defer func() { _ = conn.Close() }()
		s.spawn(ctx, conn, callID)
	}()
}

func (s *Server) handshake(conn net.Conn) (string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(HandshakeReadTimeout))
	buf := make([]byte, audiosocket.HandshakeMax)
	n, err := conn.Read(buf)
	if err != nil {
		return "", err
	}
	_ = conn.SetReadDeadline(time.Time{})
	return audiosocket.ParseHandshake(buf[:n])
}
