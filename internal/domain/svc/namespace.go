package svc

import (
	"net"
	"os"

	"go.uber.org/zap"
)

// Namespace is a static service directory: names it does not know are
// refused by closing the endpoint.
type Namespace struct {
	services *table
	exp      *exporter
	logger   *zap.Logger
}

// NewNamespace creates an empty namespace
func NewNamespace(logger *zap.Logger) *Namespace {
	exp := newExporter(logger)
	return &Namespace{
		services: newTable(),
		exp:      exp,
		logger:   exp.logger,
	}
}

// AddService registers c under name, replacing any previous connector
func (n *Namespace) AddService(name string, c Connector) {
	n.services.add(name, c)
}

// ConnectToService hands ep to the connector registered under name, or
// closes it.
func (n *Namespace) ConnectToService(name string, ep *net.UnixConn) {
	n.open(name, ep)
}

// Connect is ConnectToService for a raw byte name
func (n *Namespace) Connect(name []byte, ep *net.UnixConn) {
	n.open(string(name), ep)
}

func (n *Namespace) open(name string, ep *net.UnixConn) bool {
	if ep == nil {
		return false
	}
	if c, ok := n.services.lookup(name); ok {
		c(ep)
		return true
	}

	n.logger.Debug("Service not found", zap.ByteString("name", []byte(name)))
	ep.Close()
	return false
}

// AddBinding serves the provider protocol on conn until its peer closes
func (n *Namespace) AddBinding(conn *net.UnixConn) {
	n.exp.addBinding(conn, n)
}

// ServeDirectory serves the directory protocol on conn
func (n *Namespace) ServeDirectory(conn *net.UnixConn) bool {
	return n.exp.serveDirectory(conn, n.open, n.services.names)
}

// OpenAsDescriptor returns a new directory session as a file
func (n *Namespace) OpenAsDescriptor() (*os.File, error) {
	return n.exp.openDescriptor(n.ServeDirectory)
}

// MountAt exposes the directory at a filesystem path
func (n *Namespace) MountAt(path string) bool {
	return n.exp.mount(path, n.ServeDirectory)
}

// Unmount removes a mount created by MountAt
func (n *Namespace) Unmount(path string) bool {
	return n.exp.mounts.unmount(path)
}

// Has reports whether name is registered
func (n *Namespace) Has(name string) bool {
	_, ok := n.services.lookup(name)
	return ok
}

// Services lists registered names in sorted order
func (n *Namespace) Services() []string {
	return n.services.names()
}

// Close drops all provider bindings. Registered services stay.
func (n *Namespace) Close() {
	n.exp.close()
}

// Destroy closes every binding, session and mount and forgets all services.
func (n *Namespace) Destroy() {
	n.exp.destroy()
	n.services.clear()
}

var _ Directory = (*Namespace)(nil)
