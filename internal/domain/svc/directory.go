package svc

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/GriffinCanCode/AgentOS/appmgr/internal/transport"
	"go.uber.org/zap"
)

// ErrDestroyed is returned when a destroyed directory is asked for a new
// descriptor.
var ErrDestroyed = errors.New("service directory destroyed")

// Directory is the capability surface shared by Namespace and Bridge.
type Directory interface {
	Provider
	Connect(name []byte, ep *net.UnixConn)
	AddService(name string, c Connector)
	AddBinding(conn *net.UnixConn)
	ServeDirectory(conn *net.UnixConn) bool
	OpenAsDescriptor() (*os.File, error)
	MountAt(path string) bool
	Unmount(path string) bool
	Services() []string
	Close()
	Destroy()
}

// exporter owns every channel through which a directory is reachable
type exporter struct {
	mu        sync.Mutex
	destroyed bool // Protected by mu

	bindings *sessionSet
	sessions *sessionSet
	mounts   *mountSet
	logger   *zap.Logger
}

func newExporter(logger *zap.Logger) *exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &exporter{
		bindings: newSessionSet(),
		sessions: newSessionSet(),
		mounts:   newMountSet(),
		logger:   logger,
	}
}

func (e *exporter) addBinding(conn *net.UnixConn, p Provider) {
	if conn == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		conn.Close()
		return
	}
	e.bindings.serve(conn, func(c *transport.Conn) {
		serveProvider(c, p, e.logger)
	})
}

func (e *exporter) serveDirectory(conn *net.UnixConn, open func(string, *net.UnixConn) bool, list func() []string) bool {
	if conn == nil {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		conn.Close()
		return false
	}
	e.sessions.serve(conn, func(c *transport.Conn) {
		serveDirectory(c, open, list, e.logger)
	})
	return true
}

// openDescriptor returns the client end of a fresh directory session as a
// file suitable for handing to another process.
func (e *exporter) openDescriptor(serve func(*net.UnixConn) bool) (*os.File, error) {
	local, remote, err := transport.Pair()
	if err != nil {
		return nil, err
	}
	if !serve(local) {
		remote.Close()
		return nil, ErrDestroyed
	}

	f, err := remote.File()
	remote.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to export directory descriptor: %w", err)
	}
	return f, nil
}

func (e *exporter) mount(path string, serve func(*net.UnixConn) bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return false
	}
	return e.mounts.mount(path, func(conn *net.UnixConn) { serve(conn) }, e.logger)
}

func (e *exporter) close() {
	e.bindings.closeAll()
}

func (e *exporter) destroy() {
	e.mu.Lock()
	e.destroyed = true
	e.mu.Unlock()

	e.bindings.closeAll()
	e.sessions.closeAll()
	e.mounts.closeAll()
}
