package app

import (
	"errors"
	"net"
	"sort"
	"sync"

	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/events"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/process"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/shared/arena"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/shared/id"
	"go.uber.org/zap"
)

var (
	ErrRootExists = errors.New("root environment already exists")
	ErrNoCreator  = errors.New("process creator required")
)

// Host answers service requests an environment cannot satisfy itself
type Host interface {
	ConnectToService(name string, ep *net.UnixConn)
}

// Tree owns the environment hierarchy
type Tree struct {
	envs *arena.Arena[*Environment]

	mu          sync.RWMutex
	root        arena.Handle                    // Protected by mu
	controllers map[id.ControllerID]*Controller // Protected by mu

	creator process.Creator
	logger  *zap.Logger
	metrics *monitoring.Metrics
	events  *events.Hub
	tracer  *tracing.Tracer
}

// NewTree creates an empty tree launching processes through creator
func NewTree(creator process.Creator, logger *zap.Logger) *Tree {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tree{
		envs:        arena.New[*Environment](),
		controllers: make(map[id.ControllerID]*Controller),
		creator:     creator,
		logger:      logger,
	}
}

// WithMetrics adds metrics tracking to the tree
func (t *Tree) WithMetrics(metrics *monitoring.Metrics) *Tree {
	t.metrics = metrics
	return t
}

// WithEvents publishes lifecycle events to hub
func (t *Tree) WithEvents(hub *events.Hub) *Tree {
	t.events = hub
	return t
}

// WithTracer traces application launches
func (t *Tree) WithTracer(tracer *tracing.Tracer) *Tree {
	t.tracer = tracer
	return t
}

// Events returns the hub lifecycle events are published to, or nil
func (t *Tree) Events() *events.Hub {
	return t.events
}

// NewRoot creates the root environment. There is at most one.
func (t *Tree) NewRoot(host Host, label string) (*Environment, error) {
	if t.creator == nil {
		return nil, ErrNoCreator
	}

	t.mu.Lock()
	if !t.root.IsZero() {
		t.mu.Unlock()
		return nil, ErrRootExists
	}
	env := t.newEnvironment(arena.Handle{}, host, label)
	t.root = env.handle
	t.mu.Unlock()

	return env, nil
}

// Root returns the root environment while it is alive
func (t *Tree) Root() (*Environment, bool) {
	t.mu.RLock()
	root := t.root
	t.mu.RUnlock()

	if root.IsZero() {
		return nil, false
	}
	return t.Lookup(root)
}

// Lookup resolves a handle to a live environment
func (t *Tree) Lookup(h arena.Handle) (*Environment, bool) {
	return t.envs.Get(h)
}

// ParseEnvironment resolves the string form of a handle
func (t *Tree) ParseEnvironment(s string) (*Environment, bool) {
	h, err := arena.ParseHandle(s)
	if err != nil {
		return nil, false
	}
	return t.Lookup(h)
}

// FindController returns a controller that has not terminated
func (t *Tree) FindController(cid id.ControllerID) (*Controller, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.controllers[cid]
	return c, ok
}

// Controllers returns every controller that has not terminated, in launch
// order
func (t *Tree) Controllers() []*Controller {
	t.mu.RLock()
	ctrls := make([]*Controller, 0, len(t.controllers))
	for _, c := range t.controllers {
		ctrls = append(ctrls, c)
	}
	t.mu.RUnlock()

	sort.Slice(ctrls, func(i, j int) bool { return ctrls[i].id < ctrls[j].id })
	return ctrls
}

// Len returns the number of live environments
func (t *Tree) Len() int {
	return t.envs.Len()
}

// Snapshot describes every live environment, parents before children
func (t *Tree) Snapshot() []EnvironmentInfo {
	var envs []*Environment
	t.envs.Each(func(_ arena.Handle, env *Environment) bool {
		envs = append(envs, env)
		return true
	})

	infos := make([]EnvironmentInfo, 0, len(envs))
	for _, env := range envs {
		infos = append(infos, env.Info())
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Depth != infos[j].Depth {
			return infos[i].Depth < infos[j].Depth
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

func (t *Tree) newEnvironment(parent arena.Handle, host Host, label string) *Environment {
	env := newEnvironment(t, parent, host, label)
	env.handle = t.envs.Insert(env)
	env.logger = env.logger.With(zap.Stringer("environment", env.handle))

	t.metrics.EnvironmentCreated()
	t.events.Publish(events.Event{
		Kind:        events.EnvironmentCreated,
		Environment: env.handle.String(),
		Label:       label,
	})
	env.logger.Debug("Environment created")
	return env
}

// release drops a destroyed environment from the arena
func (t *Tree) release(env *Environment) {
	if _, ok := t.envs.Remove(env.handle); !ok {
		return
	}

	t.mu.Lock()
	if t.root == env.handle {
		t.root = arena.Handle{}
	}
	t.mu.Unlock()

	t.metrics.EnvironmentDestroyed()
	t.events.Publish(events.Event{
		Kind:        events.EnvironmentDestroyed,
		Environment: env.handle.String(),
		Label:       env.label,
	})
}

// indexController makes c findable by ID unless it already terminated
func (t *Tree) indexController(c *Controller) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c.State() == Terminated {
		return
	}
	t.controllers[c.id] = c
}

// removeController completes a controller's teardown
func (t *Tree) removeController(c *Controller, reason Reason) {
	if env, ok := t.Lookup(c.env); ok {
		env.removeController(c.id)
	}

	t.mu.Lock()
	delete(t.controllers, c.id)
	t.mu.Unlock()

	t.metrics.RecordTermination(string(reason))
	t.events.Publish(events.Event{
		Kind:        events.ControllerTerminated,
		Environment: c.env.String(),
		Controller:  c.id.String(),
		URL:         c.url,
		Reason:      string(reason),
	})
}
