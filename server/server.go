package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ftpd/ftpd/internal/authdb"
	"github.com/ftpd/ftpd/internal/ratelimit"
	"github.com/ftpd/ftpd/internal/session"
	"github.com/ftpd/ftpd/internal/transport"
	"github.com/ftpd/ftpd/internal/workpool"
)

// Server is the FTP server: an accept loop that constructs a session
// per control connection and a shared worker pool that runs command
// handlers dispatched through the lexer and parser.
type Server struct {
	addr           string
	driver         Driver
	verifier       authdb.Verifier
	rootDir        string
	logger         *slog.Logger
	workers        int
	welcomeMessage string
	maxIdleTime    time.Duration
	maxConnections int
	bandwidthLimit int64
	globalLimiter  *ratelimit.Limiter
	settings       Settings

	metricsCollector MetricsCollector

	pool       *workpool.Pool
	store      *session.Store
	nextTaskID atomic.Uint64

	mu         sync.Mutex
	listener   net.Listener
	conns      map[net.Conn]struct{}
	inShutdown atomic.Bool
	activeConns atomic.Int32
}

// ErrServerClosed is returned by Serve/ListenAndServe after Shutdown.
var ErrServerClosed = errors.New("ftpd: server closed")

// NewServer creates a Server listening on addr once started. WithDriver,
// WithVerifier and WithRootDir are required; everything else defaults.
func NewServer(addr string, options ...Option) (*Server, error) {
	s := &Server{
		addr:           addr,
		logger:         slog.Default(),
		workers:        8,
		welcomeMessage: "220 FTP server ready.",
		maxIdleTime:    5 * time.Minute,
		conns:          make(map[net.Conn]struct{}),
	}

	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.driver == nil {
		return nil, fmt.Errorf("driver is required (use WithDriver)")
	}
	if s.verifier == nil {
		return nil, fmt.Errorf("verifier is required (use WithVerifier)")
	}
	if s.rootDir == "" {
		return nil, fmt.Errorf("root dir is required (use WithRootDir)")
	}

	if s.bandwidthLimit > 0 {
		s.globalLimiter = ratelimit.New(s.bandwidthLimit)
	}

	s.pool = workpool.New(s.workers)
	s.store = session.NewStore()

	return s, nil
}

// ListenAndServe opens a TCP listener on the configured address and serves
// it until the listener is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.logger.Info("ftpd listening", "addr", s.addr)
	return s.Serve(ln)
}

// Serve accepts control connections on l until it is closed. Each
// connection runs its own goroutine reading requests and dispatching
// tasks to the shared worker pool, so the accept loop (this goroutine
// and the per-connection readers it spawns) never executes handler
// logic directly.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.inShutdown.Load() {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.listener == l {
			s.listener = nil
		}
		s.mu.Unlock()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			s.logger.Error("accept error", "error", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

// Shutdown stops accepting new connections and waits for active ones to
// finish, or forcibly closes them once ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)

	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for s.activeConns.Load() != 0 {
			time.Sleep(50 * time.Millisecond)
		}
	}()

	select {
	case <-done:
		s.pool.Destroy()
		return err
	case <-ctx.Done():
		s.mu.Lock()
		conns := s.conns
		s.conns = make(map[net.Conn]struct{})
		s.mu.Unlock()
		for conn := range maps.Keys(conns) {
			conn.Close()
		}
		s.pool.Destroy()
		if err != nil {
			return err
		}
		return ctx.Err()
	}
}

func (s *Server) trackConnection(conn net.Conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inShutdown.Load() {
		return false
	}
	if add {
		s.conns[conn] = struct{}{}
		return true
	}
	delete(s.conns, conn)
	return true
}

func (s *Server) handleConnection(conn net.Conn) {
	if s.maxConnections > 0 && int(s.activeConns.Load()) >= s.maxConnections {
		s.logger.Warn("connection rejected", "reason", "global_limit_reached")
		if s.metricsCollector != nil {
			s.metricsCollector.RecordConnection(false, "global_limit_reached")
		}
		transport.SendReply(conn, transport.Reply{Code: 421, Payload: "Too many users, sorry."})
		conn.Close()
		return
	}

	if !s.trackConnection(conn, true) {
		conn.Close()
		return
	}
	defer s.trackConnection(conn, false)

	s.activeConns.Add(1)
	defer s.activeConns.Add(-1)

	if s.metricsCollector != nil {
		s.metricsCollector.RecordConnection(true, "accepted")
	}

	id, ip, port := sessionIDFor(conn)
	sess := session.New(id, ip, port, s.rootDir)
	if err := s.store.Insert(sess); err != nil {
		s.logger.Error("duplicate session id", "id", id, "error", err)
		conn.Close()
		return
	}
	defer s.store.Remove(id)

	ch := newConnHandler(s, conn, id)
	ch.serve()
}

// sessionIDFor derives the fixed-size session.ID the store keys on, plus
// the textual peer address a Session's ip/port fields carry for display.
func sessionIDFor(conn net.Conn) (session.ID, string, int) {
	addrPort, err := netip.ParseAddrPort(conn.RemoteAddr().String())
	if err != nil {
		return session.ID{}, conn.RemoteAddr().String(), 0
	}
	return session.ID{Addr: addrPort.Addr(), Port: addrPort.Port()}, addrPort.Addr().String(), int(addrPort.Port())
}
