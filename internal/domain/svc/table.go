package svc

import (
	"net"
	"sort"
	"sync"
)

// Connector receives an endpoint for a requested service and takes
// ownership of it.
type Connector func(ep *net.UnixConn)

// Provider connects endpoints to named services.
type Provider interface {
	ConnectToService(name string, ep *net.UnixConn)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(name string, ep *net.UnixConn)

// ConnectToService calls f
func (f ProviderFunc) ConnectToService(name string, ep *net.UnixConn) { f(name, ep) }

// table maps names to connectors
type table struct {
	mu         sync.RWMutex
	connectors map[string]Connector
}

func newTable() *table {
	return &table{connectors: make(map[string]Connector)}
}

func (t *table) add(name string, c Connector) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connectors[name] = c
}

func (t *table) lookup(name string) (Connector, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.connectors[name]
	return c, ok
}

func (t *table) names() []string {
	t.mu.RLock()
	names := make([]string, 0, len(t.connectors))
	for name := range t.connectors {
		names = append(names, name)
	}
	t.mu.RUnlock()

	sort.Strings(names)
	return names
}

func (t *table) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connectors = make(map[string]Connector)
}
