// Package processtest provides in-memory process fakes.
package processtest

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"

	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/process"
)

// ErrKilled is the exit status of a fake killed with Kill
var ErrKilled = errors.New("killed")

// Process is a fake process that exits when told to
type Process struct {
	pid  int
	done chan struct{}
	once sync.Once

	mu    sync.Mutex
	err   error
	kills int
}

// NewProcess creates a running fake
func NewProcess(pid int) *Process {
	return &Process{pid: pid, done: make(chan struct{})}
}

func (p *Process) Pid() int { return p.pid }

func (p *Process) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Process) Kill() error {
	p.mu.Lock()
	p.kills++
	p.mu.Unlock()
	p.Exit(ErrKilled)
	return nil
}

// Exit makes the fake exit with err. Only the first call counts.
func (p *Process) Exit(err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	})
}

// Exited reports whether the fake has exited
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Kills counts Kill calls
func (p *Process) Kills() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.kills
}

// Launch records one CreateProcess call
type Launch struct {
	Package []byte
	Info    process.LaunchInfo
	// Services is a live connection to the directory handed to the process,
	// nil when none was passed.
	Services *net.UnixConn
	Process  *Process
}

// Creator is a fake process.Creator
type Creator struct {
	mu       sync.Mutex
	launches []*Launch
	nextPid  int
	err      error
}

// NewCreator creates a fake creator
func NewCreator() *Creator {
	return &Creator{nextPid: 1000}
}

// Fail makes subsequent launches fail with err; nil restores success.
func (c *Creator) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *Creator) CreateProcess(_ context.Context, pkg []byte, info process.LaunchInfo, services *os.File) (process.Process, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}

	l := &Launch{Package: pkg, Info: info}
	if services != nil {
		conn, err := net.FileConn(services)
		if err != nil {
			return nil, err
		}
		l.Services, _ = conn.(*net.UnixConn)
	}

	c.nextPid++
	l.Process = NewProcess(c.nextPid)
	c.launches = append(c.launches, l)
	return l.Process, nil
}

// Launches returns every recorded launch
func (c *Creator) Launches() []*Launch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Launch(nil), c.launches...)
}

// Last returns the most recent launch, or nil
func (c *Creator) Last() *Launch {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.launches) == 0 {
		return nil
	}
	return c.launches[len(c.launches)-1]
}

var _ process.Creator = (*Creator)(nil)
