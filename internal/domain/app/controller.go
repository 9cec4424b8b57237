package app

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/events"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/process"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/shared/arena"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/transport"
	"go.uber.org/zap"
)

// State of a controller
type State int32

const (
	// Active controllers terminate when their channel closes
	Active State = iota
	// Detached controllers outlive their channel
	Detached
	// Terminated is final
	Terminated
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Detached:
		return "detached"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "active":
		*s = Active
	case "detached":
		*s = Detached
	case "terminated":
		*s = Terminated
	default:
		return fmt.Errorf("unknown controller state %q", text)
	}
	return nil
}

// Reason records what terminated a controller
type Reason string

const (
	ReasonKilled               Reason = "killed"
	ReasonChannelClosed        Reason = "channel_closed"
	ReasonExited               Reason = "exited"
	ReasonEnvironmentDestroyed Reason = "environment_destroyed"
)

// Control channel operations
const (
	opKill   = "kill"
	opDetach = "detach"
)

type controlRequest struct {
	Op string `json:"op"`
}

// Controller supervises one launched application
type Controller struct {
	id        id.ControllerID
	url       string
	pid       int
	env       arena.Handle
	tree      *Tree
	createdAt time.Time
	logger    *zap.Logger
	done      chan struct{}

	mu      sync.Mutex
	state   State           // Protected by mu
	reason  Reason          // Protected by mu
	proc    process.Process // Protected by mu
	channel *transport.Conn // Protected by mu
	watch   *watcher        // Protected by mu
}

// watcher delivers a process exit at most once. Cancelling it disarms the
// pending delivery.
type watcher struct {
	armed atomic.Bool
}

func (w *watcher) cancel() { w.armed.Store(false) }

func newController(env *Environment, url string, proc process.Process) *Controller {
	cid := id.NewControllerID()
	return &Controller{
		id:        cid,
		url:       url,
		pid:       proc.Pid(),
		env:       env.handle,
		tree:      env.tree,
		createdAt: time.Now(),
		logger:    env.logger.With(zap.Stringer("controller", cid), zap.String("url", url)),
		done:      make(chan struct{}),
		state:     Active,
		proc:      proc,
	}
}

// start arms the exit watch and serves the control channel, if any. A
// controller terminated before start only releases ep.
func (c *Controller) start(ep *net.UnixConn) {
	c.mu.Lock()
	if c.state == Terminated {
		c.mu.Unlock()
		if ep != nil {
			ep.Close()
		}
		return
	}

	w := &watcher{}
	w.armed.Store(true)
	c.watch = w
	proc := c.proc

	var ch *transport.Conn
	if ep != nil {
		ch = transport.NewConn(ep)
		c.channel = ch
	}
	c.mu.Unlock()

	go c.watchExit(proc, w)
	if ch != nil {
		go c.serve(ch)
	}
}

func (c *Controller) watchExit(proc process.Process, w *watcher) {
	err := proc.Wait()
	if w.armed.CompareAndSwap(true, false) {
		c.logger.Info("Application exited", zap.Error(err))
		c.terminate(ReasonExited, false)
	}
}

// serve handles control requests until the channel closes
func (c *Controller) serve(ch *transport.Conn) {
	for {
		var req controlRequest
		h, err := ch.Receive(&req)
		if h != nil {
			h.Close()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.logger.Debug("Control channel failed", zap.Error(err))
			}
			c.terminate(ReasonChannelClosed, true)
			return
		}

		switch req.Op {
		case opKill:
			c.Kill()
			return
		case opDetach:
			c.Detach()
		default:
			c.logger.Warn("Unknown control request", zap.String("op", req.Op))
		}
	}
}

// ID returns the controller's identifier
func (c *Controller) ID() id.ControllerID { return c.id }

// URL returns the launched URL
func (c *Controller) URL() string { return c.url }

// Pid returns the process id
func (c *Controller) Pid() int { return c.pid }

// Environment returns the handle of the owning environment
func (c *Controller) Environment() arena.Handle { return c.env }

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reason returns what terminated the controller, or "" while it runs
func (c *Controller) Reason() Reason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Done is closed once the controller has terminated
func (c *Controller) Done() <-chan struct{} { return c.done }

// Detach stops channel closure from terminating the application. It has no
// effect unless the controller is Active.
func (c *Controller) Detach() {
	c.mu.Lock()
	if c.state != Active {
		c.mu.Unlock()
		return
	}
	c.state = Detached
	c.mu.Unlock()

	c.logger.Debug("Controller detached")
	c.tree.events.Publish(events.Event{
		Kind:        events.ControllerDetached,
		Environment: c.env.String(),
		Controller:  c.id.String(),
		URL:         c.url,
	})
}

// Kill terminates the application. Killing a terminated controller does
// nothing.
func (c *Controller) Kill() {
	c.terminate(ReasonKilled, false)
}

// terminate runs the teardown unless it already ran. With onlyIfActive it
// only fires from the Active state.
func (c *Controller) terminate(reason Reason, onlyIfActive bool) bool {
	c.mu.Lock()
	if c.state == Terminated || (onlyIfActive && c.state != Active) {
		c.mu.Unlock()
		return false
	}
	c.state = Terminated
	c.reason = reason
	proc, ch, w := c.proc, c.channel, c.watch
	c.proc, c.channel, c.watch = nil, nil, nil
	c.mu.Unlock()

	if w != nil {
		w.cancel()
	}
	if ch != nil {
		ch.Close()
	}
	if proc != nil {
		if err := proc.Kill(); err != nil {
			c.logger.Warn("Failed to kill process", zap.Error(err))
		}
	}
	close(c.done)

	c.tree.removeController(c, reason)
	c.logger.Info("Controller terminated", zap.String("reason", string(reason)))
	return true
}

// ControllerInfo describes a controller for inspection
type ControllerInfo struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	PID         int       `json:"pid"`
	State       State     `json:"state"`
	Environment string    `json:"environment"`
	CreatedAt   time.Time `json:"created_at"`
}

// Info snapshots the controller
func (c *Controller) Info() ControllerInfo {
	return ControllerInfo{
		ID:          c.id.String(),
		URL:         c.url,
		PID:         c.pid,
		State:       c.State(),
		Environment: c.env.String(),
		CreatedAt:   c.createdAt,
	}
}
