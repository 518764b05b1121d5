package httpcore

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/streamcore/httpcore/internal/config"
	"github.com/streamcore/httpcore/internal/taskgroup"
	"github.com/streamcore/httpcore/transport"
	"github.com/streamcore/httpcore/wire/h1"
	"github.com/streamcore/httpcore/wire/h2"
)

// Server is the top-level accept loop: it owns the transport selector,
// the per-listener structured task group, and the configured
// Handler/middleware chain. Per-connection handling runs under
// internal/taskgroup's errgroup-backed structured concurrency so that
// cancelling the listener tears down every live connection and stream.
//
// It is forbidden to copy a Server; construct one with NewServer.
type Server struct {
	Config  *config.Config
	Handler Handler
	Logger  Logger

	// Middlewares is the declarative chain composed in front of Handler;
	// order is outermost-first.
	Middlewares []Middleware

	// CustomVerify is the optional mTLS peer-verification callback.
	// Supplying it outside an mTLS mode is a configuration error.
	CustomVerify transport.VerifyFunc

	selector *transport.Selector
	listener net.Listener
	group    *taskgroup.Group

	mu     sync.Mutex
	addr   net.Addr
	closed bool
}

// NewServer validates cfg/handler and builds a Server ready to Serve.
func NewServer(cfg *config.Config, handler Handler) (*Server, error) {
	if handler == nil {
		return nil, &ConfigError{Reason: "Handler is required"}
	}
	return &Server{Config: cfg, Handler: handler}, nil
}

func (s *Server) logger() Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return defaultLogger
}

// ListenAndServe binds the configured bindTarget, then blocks in Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	selector, err := transport.New(s.Config, s.CustomVerify, s.logger())
	if err != nil {
		if err == transport.ErrCustomVerificationWithoutMTLS {
			return ErrCustomVerificationWithoutMTLS
		}
		return &ConfigError{Reason: err.Error()}
	}
	s.selector = selector

	ln, err := selector.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is cancelled or a permanent
// accept error occurs. Every spawned connection/stream task is a child of
// the listener's structured task group, so cancelling ctx tears all of
// them down leaves-first.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.addr = ln.Addr()
	s.closed = false
	s.mu.Unlock()

	s.group = taskgroup.New(ctx)
	handler := Chain(s.Middlewares, s.Handler)
	dispatcher := &Dispatcher{Handler: handler, Logger: s.logger()}

	go func() {
		<-s.group.Context().Done()
		ln.Close()
	}()

	var acceptErr error
	for {
		if s.selector != nil {
			accepted, err := s.selector.Accept(ln)
			if err != nil {
				if !s.isShutdown() {
					acceptErr = err
				}
				break
			}
			s.handleAccepted(dispatcher, accepted)
			continue
		}

		nc, err := ln.Accept()
		if err != nil {
			if !s.isShutdown() {
				acceptErr = err
			}
			break
		}
		connID := uuid.NewString()
		s.group.Go(func() error {
			return s.serveH1Conn(dispatcher, nc, connID)
		})
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	waitErr := s.group.Wait()
	if acceptErr != nil {
		return acceptErr
	}
	return waitErr
}

func (s *Server) handleAccepted(dispatcher *Dispatcher, accepted *transport.Accepted) {
	connID := uuid.NewString()
	s.logger().Debugw("server: connection accepted",
		"conn_id", connID, "alpn", accepted.Protocol, "remote_addr", accepted.Conn.RemoteAddr())
	switch accepted.Protocol {
	case "HTTP/2":
		s.group.Go(func() error {
			return s.serveH2Conn(dispatcher, accepted, connID)
		})
	default:
		s.group.Go(func() error {
			return s.serveH1Conn(dispatcher, accepted.Conn, connID)
		})
	}
}

func (s *Server) serveH1Conn(dispatcher *Dispatcher, nc net.Conn, connID string) error {
	defer nc.Close()
	conn := h1.NewConn(nc)

	for {
		st, err := conn.NextStream()
		if err != nil {
			return nil // clean close between requests, or peer gone
		}

		meta := RequestMeta{
			Protocol:   "HTTP/1.1",
			ConnID:     connID,
			StreamID:   uuid.NewString(),
			LocalAddr:  nc.LocalAddr(),
			RemoteAddr: nc.RemoteAddr(),
		}
		if err := dispatcher.Dispatch(meta, st); err != nil {
			s.logger().Errorw("server: h1 dispatch failed",
				"conn_id", connID, "stream_id", meta.StreamID, "remote_addr", meta.RemoteAddr, "error", err)
			return nil
		}
		if st.WantsClose() {
			return nil
		}
	}
}

func (s *Server) serveH2Conn(dispatcher *Dispatcher, accepted *transport.Accepted, connID string) error {
	nc := accepted.Conn
	defer nc.Close()

	settings := h2.Settings{
		MaxFrameSize:     s.Config.HTTP2.MaxFrameSize,
		TargetWindowSize: s.Config.HTTP2.TargetWindowSize,
	}
	if s.Config.HTTP2.MaxConcurrentStreams != nil {
		settings.MaxConcurrentStreams = s.Config.HTTP2.MaxConcurrentStreams
	}

	conn, err := h2.NewConn(nc, settings, s.logger())
	if err != nil {
		return err
	}

	connGroup := s.group.Child()
	err = conn.Serve(func(head RequestHead, st *h2.Stream) {
		connGroup.Go(func() error {
			meta := RequestMeta{
				Protocol:         "HTTP/2",
				ConnID:           connID,
				StreamID:         fmt.Sprintf("%d", st.ID()),
				LocalAddr:        nc.LocalAddr(),
				RemoteAddr:       nc.RemoteAddr(),
				PeerCertificates: accepted.PeerCertificates,
			}
			if derr := dispatcher.Dispatch(meta, st); derr != nil {
				s.logger().Errorw("server: h2 dispatch failed",
					"conn_id", connID, "stream_id", meta.StreamID, "remote_addr", meta.RemoteAddr, "error", derr)
			}
			return nil
		})
	})
	_ = connGroup.Wait()
	return err
}

func (s *Server) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Addr returns the server's actual bound address, or ErrServerClosed once
// Serve has returned.
func (s *Server) Addr() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.addr == nil {
		return nil, ErrServerClosed
	}
	return s.addr, nil
}

// Shutdown stops the accept loop and cancels the listener's task group,
// then waits up to ctx's deadline for in-flight handlers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	ln := s.listener
	selector := s.selector
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	if selector != nil {
		selector.Stop()
	}
	if s.group != nil {
		s.group.Cancel()
	}

	done := make(chan struct{})
	go func() {
		if s.group != nil {
			s.group.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
