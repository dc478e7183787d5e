// Package server owns the listening socket, the per-connection loop and the
// request dispatcher. One goroutine per accepted connection; a connection
// carries exactly one HTTP/1.0 request and is then closed.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	"example.com/tinyhttpd/internal/config"
	"example.com/tinyhttpd/internal/handlers"
	"example.com/tinyhttpd/internal/http1"
	"example.com/tinyhttpd/internal/logger"
)

// Server accepts connections and feeds each request through the dispatcher.
type Server struct {
	cfg        *config.Config
	log        *logger.Logger
	dispatcher *Dispatcher

	listener net.Listener
	wg       sync.WaitGroup

	baseCtx      context.Context
	cancelConns  context.CancelFunc
	inShutdown   atomic.Bool
	shutdownOnce sync.Once
}

// New creates a Server from a validated configuration.
func New(cfg *config.Config, lg *logger.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if lg == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:         cfg,
		log:         lg,
		dispatcher:  NewDispatcher(cfg, lg),
		baseCtx:     ctx,
		cancelConns: cancel,
	}, nil
}

// Listen binds the configured address. When max_connections is set, the
// listener is capped with netutil.LimitListener so excess connections queue
// in the kernel instead of spawning goroutines.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", *s.cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", *s.cfg.Server.Address, err)
	}
	if s.cfg.Server.MaxConnections != nil {
		ln = netutil.LimitListener(ln, *s.cfg.Server.MaxConnections)
	}
	s.listener = ln
	s.log.Info("Listening", logger.LogFields{"address": ln.Addr().String()})
	return nil
}

// Addr returns the bound address. Valid after Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve runs the accept loop. It returns nil once Shutdown closes the
// listener, or the accept error otherwise.
func (s *Server) Serve() error {
	if s.listener == nil {
		return fmt.Errorf("Serve called before Listen")
	}
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Shutdown stops accepting connections and waits for in-flight requests up
// to the configured grace period, after which remaining connection contexts
// are cancelled (killing any still-running scripts).
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.inShutdown.Store(true)
		if s.listener != nil {
			s.listener.Close()
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(s.cfg.Server.ParsedShutdownTimeout):
			s.log.Warn("Shutdown grace period expired with connections still open", logger.LogFields{
				"grace": s.cfg.Server.ParsedShutdownTimeout.String(),
			})
		}
		s.cancelConns()
	})
}

// Run is the blocking entry point used by the command: it binds the
// listener, serves until an interrupt or termination signal arrives, then
// shuts down gracefully. Returns nil on an orderly shutdown.
func (s *Server) Run() error {
	if err := s.Listen(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.Serve() }()

	select {
	case sig := <-sigCh:
		s.log.Info("Shutdown signal received", logger.LogFields{"signal": sig.String()})
		s.Shutdown()
		<-serveErr
		return nil
	case err := <-serveErr:
		return err
	}
}

// handleConn reads one request, dispatches it and writes the response.
// Responses on a connection are emitted in the order requests complete
// parsing, which for a single-request connection is trivially the receive
// order.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	start := time.Now()
	remote := conn.RemoteAddr().String()

	req, err := http1.ReadRequest(conn, *s.cfg.Server.MaxBodyBytes)
	if err != nil {
		if err == io.EOF {
			return // client connected and went away; nothing to answer
		}
		s.log.Info("Rejecting malformed request", logger.LogFields{
			"remote": remote,
			"error":  err.Error(),
		})
		resp := handlers.ErrorResponse(http.StatusBadRequest, "", "")
		s.writeResponse(conn, resp, false)
		s.log.Access(remote, "-", "-", resp.StatusCode, resp.BodySize(), time.Since(start))
		return
	}

	req.RemoteAddr = remote
	resp := s.dispatcher.Dispatch(s.baseCtx, req)
	s.writeResponse(conn, resp, req.Method == http.MethodHead)

	uri := req.RawPath
	if req.Query != "" {
		uri += "?" + req.Query
	}
	s.log.Access(remote, req.Method, uri, resp.StatusCode, resp.BodySize(), time.Since(start))
}

// writeResponse serializes resp to the connection. A failed write usually
// means the client disconnected mid-response; that aborts the body copy and
// is logged at debug, not treated as a server fault.
func (s *Server) writeResponse(conn net.Conn, resp *http1.Response, suppressBody bool) {
	if err := resp.WriteTo(conn, suppressBody); err != nil {
		if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
			s.log.Debug("Client disconnected during response write", logger.LogFields{
				"remote": conn.RemoteAddr().String(),
			})
			return
		}
		s.log.Debug("Response write failed", logger.LogFields{
			"remote": conn.RemoteAddr().String(),
			"error":  err.Error(),
		})
	}
}
