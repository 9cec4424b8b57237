// Package root hosts the root environment. The root host is the end of every
// service chain and answers exactly one service: the application loader.
package root

import (
	"context"
	"net"

	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/app"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/loader"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/process"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/svc"
	"go.uber.org/zap"
)

// Label names the root environment
const Label = "root"

// Host owns the root environment and the loader it resolves packages with
type Host struct {
	loader   *loader.Loader
	services *svc.Namespace
	env      *app.Environment
	logger   *zap.Logger
}

// New builds the loader over path and creates the root environment in tree
func New(tree *app.Tree, path []string, logger *zap.Logger) (*Host, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Host{
		loader:   loader.New(path, logger.Named("loader")),
		services: svc.NewNamespace(logger.Named("root_host")),
		logger:   logger,
	}
	h.services.AddService(loader.ServiceName, h.loader.Connector())

	env, err := tree.NewRoot(h, Label)
	if err != nil {
		h.services.Destroy()
		return nil, err
	}
	h.env = env

	logger.Info("Root environment ready",
		zap.Stringer("environment", env.Handle()),
		zap.Strings("path", h.loader.Path()))
	return h, nil
}

// ConnectToService answers the loader service and closes anything else
func (h *Host) ConnectToService(name string, ep *net.UnixConn) {
	h.services.ConnectToService(name, ep)
}

// AddBinding serves the host's services to a remote provider client
func (h *Host) AddBinding(conn *net.UnixConn) {
	h.services.AddBinding(conn)
}

// Environment returns the root environment
func (h *Host) Environment() *app.Environment { return h.env }

// Loader returns the root loader
func (h *Host) Loader() *loader.Loader { return h.loader }

// LaunchInitial starts each application without a controller channel and
// returns how many started.
func (h *Host) LaunchInitial(ctx context.Context, apps []process.LaunchInfo) int {
	started := 0
	for _, info := range apps {
		if _, ok := h.env.CreateApplication(ctx, info, nil); ok {
			started++
		}
	}
	if len(apps) > 0 {
		h.logger.Info("Initial applications launched", zap.Int("requested", len(apps)), zap.Int("started", started))
	}
	return started
}

// Close destroys the root environment and the host's services
func (h *Host) Close() {
	h.env.Destroy()
	h.services.Destroy()
}

var _ app.Host = (*Host)(nil)
