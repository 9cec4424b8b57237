package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/svc"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

var ErrEmptyPackage = errors.New("empty package")

const maxStartRetries = 5

// ExecCreator runs packages with os/exec. The package bytes are written to
// a private staging file that lives until the process has been reaped, so
// interpreters can still open a script package after start.
type ExecCreator struct {
	stagingDir string
	stdout     *os.File
	stderr     *os.File
	logger     *zap.Logger
}

// NewExecCreator stages packages under stagingDir (os.TempDir when empty).
// Children share the manager's stdout and stderr.
func NewExecCreator(stagingDir string, logger *zap.Logger) *ExecCreator {
	if stagingDir == "" {
		stagingDir = os.TempDir()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecCreator{
		stagingDir: stagingDir,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		logger:     logger,
	}
}

// CreateProcess stages pkg, decompressed if it is gzip or zstd, and starts it with argv[0] set to the launch URL.
// services, when non-nil, is inherited as descriptor svc.ServicesFD.
func (c *ExecCreator) CreateProcess(ctx context.Context, pkg []byte, info LaunchInfo, services *os.File) (Process, error) {
	if len(pkg) == 0 {
		return nil, ErrEmptyPackage
	}

	image, mime, err := Unpack(pkg)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", info.URL, err)
	}
	if len(image) == 0 {
		return nil, ErrEmptyPackage
	}

	c.logger.Debug("Staging package",
		zap.String("url", info.URL),
		zap.String("mime", mime),
		zap.Int("size", len(pkg)),
		zap.Int("unpacked", len(image)))

	path, err := c.stage(image)
	if err != nil {
		return nil, err
	}

	var cmd *exec.Cmd
	start := func() error {
		cmd = c.command(path, info, services)
		err := cmd.Start()
		if errors.Is(err, syscall.ETXTBSY) {
			// another fork still holds the staging file open for writing
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 5 * time.Millisecond
	policy.MaxInterval = 100 * time.Millisecond
	if err := backoff.Retry(start, backoff.WithContext(backoff.WithMaxRetries(policy, maxStartRetries), ctx)); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to start %s: %w", info.URL, err)
	}

	c.logger.Info("Process started", zap.String("url", info.URL), zap.Int("pid", cmd.Process.Pid))
	return watch(cmd, path, c.logger), nil
}

func (c *ExecCreator) stage(pkg []byte) (string, error) {
	f, err := os.CreateTemp(c.stagingDir, "appmgr-pkg-*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging file: %w", err)
	}
	path := f.Name()

	if _, err := f.Write(pkg); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write staging file: %w", err)
	}
	if err := f.Chmod(0o700); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to mark staging file executable: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close staging file: %w", err)
	}
	return path, nil
}

func (c *ExecCreator) command(path string, info LaunchInfo, services *os.File) *exec.Cmd {
	cmd := exec.Command(path, info.Arguments...)
	cmd.Args[0] = info.URL
	cmd.Stdout = c.stdout
	cmd.Stderr = c.stderr
	cmd.Env = os.Environ()
	if services != nil {
		cmd.ExtraFiles = []*os.File{services}
		cmd.Env = append(cmd.Env, svc.ServicesFDEnv+"="+strconv.Itoa(svc.ServicesFD))
	}
	return cmd
}

// execProcess reaps its child in the background so Wait can be shared. The
// staging file is removed once the child is reaped.
type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func watch(cmd *exec.Cmd, staged string, logger *zap.Logger) *execProcess {
	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		if err := os.Remove(staged); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove staging file", zap.String("path", staged), zap.Error(err))
		}
		close(p.done)
	}()
	return p
}

func (p *execProcess) Pid() int { return p.cmd.Process.Pid }

func (p *execProcess) Wait() error {
	<-p.done
	return p.err
}

func (p *execProcess) Kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

var _ Creator = (*ExecCreator)(nil)
