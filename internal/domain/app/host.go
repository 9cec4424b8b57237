package app

import (
	"net"

	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/svc"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/shared/arena"
	"go.uber.org/zap"
)

// ChainHost serves a child environment: its own namespace first, then the
// parent environment's service chain.
type ChainHost struct {
	services *svc.Namespace
	tree     *Tree
	parent   arena.Handle
	logger   *zap.Logger
}

// NewChainHost creates a host delegating to parent
func NewChainHost(parent *Environment) *ChainHost {
	logger := parent.logger.Named("host")
	return &ChainHost{
		services: svc.NewNamespace(logger),
		tree:     parent.tree,
		parent:   parent.handle,
		logger:   logger,
	}
}

// Services returns the host's own namespace
func (h *ChainHost) Services() *svc.Namespace { return h.services }

// ConnectToService answers from the namespace, else from the parent while it
// is alive, else closes ep.
func (h *ChainHost) ConnectToService(name string, ep *net.UnixConn) {
	if h.services.Has(name) {
		h.services.ConnectToService(name, ep)
		return
	}
	if parent, ok := h.tree.Lookup(h.parent); ok {
		parent.ConnectToService(name, ep)
		return
	}

	h.logger.Debug("Parent gone, refusing service", zap.ByteString("name", []byte(name)))
	if ep != nil {
		ep.Close()
	}
}

// Close destroys the host's namespace
func (h *ChainHost) Close() {
	h.services.Destroy()
}

var _ Host = (*ChainHost)(nil)
