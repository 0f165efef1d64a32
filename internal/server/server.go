package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

// ErrAddrInUse wraps bind failures caused by another process already
// holding the port, so callers can print a precise diagnostic.
var ErrAddrInUse = errors.New("address already in use")

type Server struct {
	httpServer *http.Server
	listener   net.Listener
}

func New(addr string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: handler,
		},
	}
}

// Listen binds the socket. Must be called before Serve.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("%w: %s", ErrAddrInUse, s.httpServer.Addr)
		}
		return err
	}
	s.listener = ln
	return nil
}

// Serve starts accepting connections. Blocks until shutdown.
// Caller must call Listen first.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("must call Listen before Serve")
	}
	return s.httpServer.Serve(s.listener)
}

func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting new connections and waits for in-flight
// responses to finish, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
