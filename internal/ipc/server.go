package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Handler processes one request and returns the response.
type Handler interface {
	Handle(ctx context.Context, req Request) Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) Response

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// connTimeout bounds a single request/response exchange.
const connTimeout = 30 * time.Second

// Server accepts control connections on a unix socket.
type Server struct {
	socketPath string
	handler    Handler
	logger     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	running  bool
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewServer creates a control server.
func NewServer(socketPath string, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		logger:     logger.With("component", "ipc"),
	}
}

// Start binds the socket and begins accepting connections. A stale socket
// file from a previous run is removed first.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("ipc: server already running")
	}

	dir := filepath.Dir(s.socketPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		ln.Close()
		return err
	}

	s.listener = ln
	s.conns = make(map[net.Conn]struct{})
	s.running = true
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.acceptLoop()

	s.logger.Info("control socket listening", "path", s.socketPath)
	return nil
}

// Stop closes the listener, waits for in-flight connections and removes
// the socket file.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.done)
	ln := s.listener
	s.mu.Unlock()

	err := ln.Close()
	// Unblock connection goroutines stuck reading from idle clients.
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	os.Remove(s.socketPath)
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

// serveConn reads requests line by line until the client hangs up.
func (s *Server) serveConn(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
		s.wg.Done()
	}()

	scanner := bufio.NewScanner(conn)
	enc := json.NewEncoder(conn)

	for {
		// The deadline covers waiting for the next request too, so an
		// idle client cannot pin this goroutine indefinitely.
		conn.SetDeadline(time.Now().Add(connTimeout))
		if !scanner.Scan() {
			return
		}

		var req Request
		resp := Response{}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			resp = Errf("bad request: %v", err)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
			resp = s.handler.Handle(ctx, req)
			cancel()
		}
		if err := enc.Encode(resp); err != nil {
			s.logger.Warn("write response failed", "error", err)
			return
		}
	}
}
