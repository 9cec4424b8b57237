package svc

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/GriffinCanCode/AgentOS/appmgr/internal/transport"
	"go.uber.org/zap"
)

// sessionSet tracks live sessions so they can be torn down together
type sessionSet struct {
	mu    sync.Mutex
	conns map[*transport.Conn]struct{}
}

func newSessionSet() *sessionSet {
	return &sessionSet{conns: make(map[*transport.Conn]struct{})}
}

// serve runs fn on conn in its own goroutine. The session is dropped and
// closed when fn returns.
func (s *sessionSet) serve(ep *net.UnixConn, fn func(*transport.Conn)) {
	conn := transport.NewConn(ep)

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer s.drop(conn)
		fn(conn)
	}()
}

func (s *sessionSet) drop(conn *transport.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *sessionSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// closeAll closes every live session. Sessions served afterwards are
// tracked as usual.
func (s *sessionSet) closeAll() {
	s.mu.Lock()
	conns := s.conns
	s.conns = make(map[*transport.Conn]struct{})
	s.mu.Unlock()

	for conn := range conns {
		conn.Close()
	}
}

// serveProvider answers connect frames until the peer goes away
func serveProvider(conn *transport.Conn, p Provider, logger *zap.Logger) {
	for {
		var req request
		ep, err := conn.Receive(&req)
		if err != nil {
			logSessionEnd(logger, "provider", err)
			return
		}
		if req.Op != OpConnect || ep == nil {
			logger.Warn("Dropping malformed provider request", zap.String("op", req.Op), zap.Bool("handle", ep != nil))
			if ep != nil {
				ep.Close()
			}
			continue
		}
		p.ConnectToService(string(req.Name), ep)
	}
}

// serveDirectory answers open and list frames until the peer goes away
func serveDirectory(conn *transport.Conn, open func(name string, ep *net.UnixConn) bool, list func() []string, logger *zap.Logger) {
	for {
		var req request
		ep, err := conn.Receive(&req)
		if err != nil {
			logSessionEnd(logger, "directory", err)
			return
		}

		var rep reply
		switch {
		case req.Op == OpOpen && ep != nil:
			rep.Status = StatusNotFound
			if open(string(req.Name), ep) {
				rep.Status = StatusOK
			}
		case req.Op == OpList:
			if ep != nil {
				ep.Close()
			}
			rep.Status = StatusOK
			for _, name := range list() {
				rep.Names = append(rep.Names, []byte(name))
			}
		default:
			if ep != nil {
				ep.Close()
			}
			rep.Status = StatusBadRequest
		}

		if err := conn.Send(rep, nil); err != nil {
			logSessionEnd(logger, "directory", err)
			return
		}
	}
}

func logSessionEnd(logger *zap.Logger, kind string, err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		logger.Debug("Session closed", zap.String("kind", kind))
		return
	}
	logger.Debug("Session ended", zap.String("kind", kind), zap.Error(err))
}
