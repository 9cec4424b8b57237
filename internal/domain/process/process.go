// Package process starts application packages as operating system processes.
package process

import (
	"context"
	"os"
)

// LaunchInfo describes one application launch request
type LaunchInfo struct {
	URL       string   `json:"url"`
	Arguments []string `json:"arguments,omitempty"`
}

// Process is a running application
type Process interface {
	Pid() int
	// Wait blocks until the process exits. It may be called any number of
	// times.
	Wait() error
	// Kill terminates the process. Killing an exited process returns nil.
	Kill() error
}

// Creator turns a loaded package into a running process. services is the
// application's service directory; the caller keeps ownership of it.
type Creator interface {
	CreateProcess(ctx context.Context, pkg []byte, info LaunchInfo, services *os.File) (Process, error)
}
