package svc

import (
	"net"
	"os"
	"sync"

	"go.uber.org/zap"
)

// Bridge answers its own services and forwards every other request to a
// backend provider.
type Bridge struct {
	services *table
	exp      *exporter
	logger   *zap.Logger

	mu      sync.RWMutex
	backend Provider // Protected by mu
}

// NewBridge creates a bridge with no backend
func NewBridge(logger *zap.Logger) *Bridge {
	exp := newExporter(logger)
	return &Bridge{
		services: newTable(),
		exp:      exp,
		logger:   exp.logger,
	}
}

// SetBackend replaces the provider that receives unknown names
func (b *Bridge) SetBackend(p Provider) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.backend = p
}

// AddService registers c under name, replacing any previous connector
func (b *Bridge) AddService(name string, c Connector) {
	b.services.add(name, c)
}

// ConnectToService resolves name locally, then through the backend. With
// neither, ep is closed.
func (b *Bridge) ConnectToService(name string, ep *net.UnixConn) {
	if ep == nil {
		return
	}
	if c, ok := b.services.lookup(name); ok {
		c(ep)
		return
	}

	b.mu.RLock()
	backend := b.backend
	b.mu.RUnlock()

	if backend != nil {
		backend.ConnectToService(name, ep)
		return
	}
	b.logger.Debug("Service not found and no backend", zap.ByteString("name", []byte(name)))
	ep.Close()
}

// Connect is ConnectToService for a raw byte name
func (b *Bridge) Connect(name []byte, ep *net.UnixConn) {
	b.ConnectToService(string(name), ep)
}

// open always succeeds from the client's view: a backend cannot be asked in
// advance whether it knows a name.
func (b *Bridge) open(name string, ep *net.UnixConn) bool {
	b.ConnectToService(name, ep)
	return true
}

// AddBinding serves the provider protocol on conn until its peer closes
func (b *Bridge) AddBinding(conn *net.UnixConn) {
	b.exp.addBinding(conn, b)
}

// ServeDirectory serves the directory protocol on conn. Listing shows local
// services only.
func (b *Bridge) ServeDirectory(conn *net.UnixConn) bool {
	return b.exp.serveDirectory(conn, b.open, b.services.names)
}

// OpenAsDescriptor returns a new directory session as a file
func (b *Bridge) OpenAsDescriptor() (*os.File, error) {
	return b.exp.openDescriptor(b.ServeDirectory)
}

// MountAt exposes the directory at a filesystem path
func (b *Bridge) MountAt(path string) bool {
	return b.exp.mount(path, b.ServeDirectory)
}

// Unmount removes a mount created by MountAt
func (b *Bridge) Unmount(path string) bool {
	return b.exp.mounts.unmount(path)
}

// Services lists locally registered names in sorted order
func (b *Bridge) Services() []string {
	return b.services.names()
}

// Close drops all provider bindings
func (b *Bridge) Close() {
	b.exp.close()
}

// Destroy closes every binding, session and mount, forgets all services and
// detaches the backend.
func (b *Bridge) Destroy() {
	b.exp.destroy()
	b.services.clear()
	b.SetBackend(nil)
}

var _ Directory = (*Bridge)(nil)
