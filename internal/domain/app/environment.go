package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/events"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/loader"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/process"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/svc"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/shared/arena"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/transport"
	"go.uber.org/zap"
)

var errEnvironmentDestroyed = errors.New("environment destroyed")

// Environment is a node of the hierarchy. It launches applications and
// serves them its services, falling back to its host for names it does not
// provide itself.
type Environment struct {
	tree      *Tree
	handle    arena.Handle
	parent    arena.Handle
	depth     int
	label     string
	host      Host
	services  *svc.Bridge
	createdAt time.Time
	logger    *zap.Logger

	mu          sync.Mutex
	destroyed   bool                            // Protected by mu
	ownedHost   *ChainHost                      // Protected by mu
	children    []arena.Handle                  // Protected by mu
	controllers map[id.ControllerID]*Controller // Protected by mu
}

func newEnvironment(t *Tree, parent arena.Handle, host Host, label string) *Environment {
	env := &Environment{
		tree:        t,
		parent:      parent,
		label:       label,
		host:        host,
		createdAt:   time.Now(),
		logger:      t.logger.With(zap.String("label", label)),
		controllers: make(map[id.ControllerID]*Controller),
	}
	if p, ok := t.Lookup(parent); ok {
		env.depth = p.depth + 1
	}

	env.services = svc.NewBridge(env.logger)
	if host != nil {
		env.services.SetBackend(host)
	}
	env.services.AddService(LauncherServiceName, env.launcherConnector())
	return env
}

// Handle identifies the environment within its tree
func (e *Environment) Handle() arena.Handle { return e.handle }

// Label is the human-readable name given at creation
func (e *Environment) Label() string { return e.label }

// Parent returns the parent environment while it is alive
func (e *Environment) Parent() (*Environment, bool) {
	if e.parent.IsZero() {
		return nil, false
	}
	return e.tree.Lookup(e.parent)
}

// Services returns the environment's service bridge
func (e *Environment) Services() svc.Directory { return e.services }

// Destroyed reports whether Destroy has run
func (e *Environment) Destroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed
}

// Children returns the live child environments
func (e *Environment) Children() []*Environment {
	e.mu.Lock()
	handles := append([]arena.Handle(nil), e.children...)
	e.mu.Unlock()

	children := make([]*Environment, 0, len(handles))
	for _, h := range handles {
		if child, ok := e.tree.Lookup(h); ok {
			children = append(children, child)
		}
	}
	return children
}

// Controllers returns the controllers owned by the environment
func (e *Environment) Controllers() []*Controller {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctrls := make([]*Controller, 0, len(e.controllers))
	for _, c := range e.controllers {
		ctrls = append(ctrls, c)
	}
	sort.Slice(ctrls, func(i, j int) bool { return ctrls[i].id < ctrls[j].id })
	return ctrls
}

// ControllerCount returns the number of owned controllers
func (e *Environment) ControllerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.controllers)
}

// CreateChild creates a nested environment served by host. On a destroyed
// environment the child comes back already destroyed.
func (e *Environment) CreateChild(host Host, label string) *Environment {
	return e.createChild(host, label, nil)
}

// CreateChainedChild creates a nested environment that resolves unknown
// services through e. The child owns its ChainHost and closes it when
// destroyed.
func (e *Environment) CreateChainedChild(label string) *Environment {
	host := NewChainHost(e)
	return e.createChild(host, label, host)
}

func (e *Environment) createChild(host Host, label string, owned *ChainHost) *Environment {
	child := e.tree.newEnvironment(e.handle, host, label)
	if owned != nil {
		child.mu.Lock()
		child.ownedHost = owned
		child.mu.Unlock()
	}

	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		child.Destroy()
		return child
	}
	e.children = append(e.children, child.handle)
	e.mu.Unlock()

	return child
}

// ConnectToService resolves name through the environment's services, then
// its host.
func (e *Environment) ConnectToService(name string, ep *net.UnixConn) {
	e.services.ConnectToService(name, ep)
}

// GetServices returns a directory descriptor for the environment's services
func (e *Environment) GetServices() (*os.File, error) {
	return e.services.OpenAsDescriptor()
}

// CreateApplication loads info.URL, starts it, and binds a controller to
// controller when non-nil. Failures are logged and reported as false; the
// controller endpoint is closed so its holder observes the failure.
func (e *Environment) CreateApplication(ctx context.Context, info process.LaunchInfo, controller *net.UnixConn) (*Controller, bool) {
	span, ctx := e.tree.tracer.StartSpan(ctx, "create_application")
	span.SetTag("url", info.URL)
	span.SetTag("environment", e.handle.String())
	defer func() {
		span.Finish()
		e.tree.tracer.Submit(span)
	}()

	timer := monitoring.NewTimer(e.tree.metrics)
	logger := e.logger.With(zap.String("url", info.URL))

	fail := func(result string, err error) (*Controller, bool) {
		logger.Error("Failed to create application", zap.String("result", result), zap.Error(err))
		if controller != nil {
			controller.Close()
		}
		span.SetError(err)
		timer.Stop(result)
		e.tree.events.Publish(events.Event{
			Kind:        events.LaunchFailed,
			Environment: e.handle.String(),
			URL:         info.URL,
			Reason:      err.Error(),
		})
		return nil, false
	}

	if e.Destroyed() {
		return fail(monitoring.LaunchFailed, errEnvironmentDestroyed)
	}

	pkg, err := e.loadPackage(ctx, info.URL)
	if err != nil {
		if errors.Is(err, loader.ErrNotFound) {
			return fail(monitoring.LaunchNotFound, err)
		}
		return fail(monitoring.LaunchFailed, err)
	}

	services, err := e.services.OpenAsDescriptor()
	if err != nil {
		return fail(monitoring.LaunchFailed, fmt.Errorf("failed to open services: %w", err))
	}
	proc, err := e.tree.creator.CreateProcess(ctx, pkg, info, services)
	services.Close()
	if err != nil {
		return fail(monitoring.LaunchFailed, err)
	}

	c := newController(e, info.URL, proc)
	if !e.addController(c) {
		proc.Kill()
		return fail(monitoring.LaunchFailed, errEnvironmentDestroyed)
	}
	e.tree.indexController(c)
	c.start(controller)

	timer.Stop(monitoring.LaunchSucceeded)
	span.SetTag("controller", c.id.String())
	logger.Info("Application launched", zap.Stringer("controller", c.id), zap.Int("pid", c.pid))
	e.tree.events.Publish(events.Event{
		Kind:        events.ApplicationLaunched,
		Environment: e.handle.String(),
		Controller:  c.id.String(),
		URL:         info.URL,
	})
	return c, true
}

// loadPackage asks whichever loader the environment's service chain
// resolves to.
func (e *Environment) loadPackage(ctx context.Context, url string) ([]byte, error) {
	local, remote, err := transport.Pair()
	if err != nil {
		return nil, err
	}
	e.ConnectToService(loader.ServiceName, remote)

	client := loader.NewClient(local)
	defer client.Close()
	return client.Load(ctx, url)
}

func (e *Environment) addController(c *Controller) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return false
	}
	e.controllers[c.id] = c
	return true
}

func (e *Environment) removeController(cid id.ControllerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.controllers, cid)
}

func (e *Environment) removeChild(h arena.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, c := range e.children {
		if c == h {
			e.children = append(e.children[:i], e.children[i+1:]...)
			return
		}
	}
}

// Destroy terminates every application, destroys every descendant, tears
// down the services and detaches from the parent. Repeated calls do nothing.
func (e *Environment) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	ctrls := make([]*Controller, 0, len(e.controllers))
	for _, c := range e.controllers {
		ctrls = append(ctrls, c)
	}
	children := e.children
	e.children = nil
	owned := e.ownedHost
	e.ownedHost = nil
	e.mu.Unlock()

	for _, c := range ctrls {
		c.terminate(ReasonEnvironmentDestroyed, false)
	}
	for _, h := range children {
		if child, ok := e.tree.Lookup(h); ok {
			child.Destroy()
		}
	}

	e.services.Destroy()
	if owned != nil {
		owned.Close()
	}

	if parent, ok := e.Parent(); ok {
		parent.removeChild(e.handle)
	}
	e.tree.release(e)
	e.logger.Debug("Environment destroyed", zap.Int("applications", len(ctrls)))
}

// EnvironmentInfo describes an environment for inspection
type EnvironmentInfo struct {
	Handle      string           `json:"handle"`
	Parent      string           `json:"parent,omitempty"`
	Label       string           `json:"label"`
	Depth       int              `json:"depth"`
	Services    []string         `json:"services"`
	Children    []string         `json:"children"`
	Controllers []ControllerInfo `json:"controllers"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Info snapshots the environment
func (e *Environment) Info() EnvironmentInfo {
	info := EnvironmentInfo{
		Handle:    e.handle.String(),
		Label:     e.label,
		Depth:     e.depth,
		Services:  e.services.Services(),
		CreatedAt: e.createdAt,
	}
	if !e.parent.IsZero() {
		info.Parent = e.parent.String()
	}

	e.mu.Lock()
	children := append([]arena.Handle(nil), e.children...)
	e.mu.Unlock()

	info.Children = make([]string, len(children))
	for i, h := range children {
		info.Children[i] = h.String()
	}

	ctrls := e.Controllers()
	info.Controllers = make([]ControllerInfo, len(ctrls))
	for i, c := range ctrls {
		info.Controllers[i] = c.Info()
	}
	return info
}
