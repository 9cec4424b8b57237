package svc

import (
	"errors"
	"net"
	"os"
	"sync"

	"go.uber.org/zap"
)

// mountSet owns the listeners bound for MountAt
type mountSet struct {
	mu        sync.Mutex
	listeners map[string]*net.UnixListener
}

func newMountSet() *mountSet {
	return &mountSet{listeners: make(map[string]*net.UnixListener)}
}

// mount binds path and hands every accepted connection to serve. It fails
// without side effects when path is taken.
func (m *mountSet) mount(path string, serve func(*net.UnixConn), logger *zap.Logger) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.listeners[path]; exists {
		logger.Warn("Mount point already in use", zap.String("path", path))
		return false
	}

	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		logger.Warn("Failed to mount service directory", zap.String("path", path), zap.Error(err))
		return false
	}
	m.listeners[path] = l

	go func() {
		for {
			conn, err := l.AcceptUnix()
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					logger.Warn("Mount stopped accepting", zap.String("path", path), zap.Error(err))
				}
				return
			}
			serve(conn)
		}
	}()
	return true
}

func (m *mountSet) unmount(path string) bool {
	m.mu.Lock()
	l, ok := m.listeners[path]
	delete(m.listeners, path)
	m.mu.Unlock()

	if !ok {
		return false
	}
	l.Close()
	os.Remove(path)
	return true
}

func (m *mountSet) paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	paths := make([]string, 0, len(m.listeners))
	for p := range m.listeners {
		paths = append(paths, p)
	}
	return paths
}

func (m *mountSet) closeAll() {
	for _, p := range m.paths() {
		m.unmount(p)
	}
}
