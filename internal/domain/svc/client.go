package svc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/GriffinCanCode/AgentOS/appmgr/internal/transport"
	"go.uber.org/zap"
)

var (
	ErrNotFound      = errors.New("service not found")
	ErrBadRequest    = errors.New("directory rejected request")
	ErrNoServicesFD  = errors.New(ServicesFDEnv + " not set")
	ErrInvalidHandle = errors.New("invalid endpoint")
)

// DirectoryClient speaks the directory protocol. Calls are serialized.
type DirectoryClient struct {
	mu   sync.Mutex
	conn *transport.Conn
}

// NewDirectoryClient takes ownership of conn
func NewDirectoryClient(conn *net.UnixConn) *DirectoryClient {
	return &DirectoryClient{conn: transport.NewConn(conn)}
}

// DialDirectory connects to a directory mounted at path
func DialDirectory(path string) (*DirectoryClient, error) {
	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("failed to dial directory %s: %w", path, err)
	}
	return NewDirectoryClient(conn), nil
}

// DirectoryFromFile adopts a descriptor produced by OpenAsDescriptor
func DirectoryFromFile(f *os.File) (*DirectoryClient, error) {
	conn, err := transport.EndpointFromFile(f)
	if err != nil {
		return nil, err
	}
	return NewDirectoryClient(conn), nil
}

// ServicesFromEnv opens the directory a launched application inherited
func ServicesFromEnv() (*DirectoryClient, error) {
	v, ok := os.LookupEnv(ServicesFDEnv)
	if !ok {
		return nil, ErrNoServicesFD
	}
	fd, err := strconv.Atoi(v)
	if err != nil || fd < 0 {
		return nil, fmt.Errorf("invalid %s %q", ServicesFDEnv, v)
	}
	return DirectoryFromFile(os.NewFile(uintptr(fd), "services"))
}

// Open asks the directory to connect ep to name. ep is consumed.
func (d *DirectoryClient) Open(ctx context.Context, name string, ep *net.UnixConn) error {
	if ep == nil {
		return ErrInvalidHandle
	}

	rep, err := d.call(ctx, request{Op: OpOpen, Name: []byte(name)}, ep)
	if err != nil {
		return err
	}
	switch rep.Status {
	case StatusOK:
		return nil
	case StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	default:
		return ErrBadRequest
	}
}

// Connect creates a channel to name and returns the local end
func (d *DirectoryClient) Connect(ctx context.Context, name string) (*net.UnixConn, error) {
	local, remote, err := transport.Pair()
	if err != nil {
		return nil, err
	}
	if err := d.Open(ctx, name, remote); err != nil {
		local.Close()
		return nil, err
	}
	return local, nil
}

// List returns the names the directory advertises
func (d *DirectoryClient) List(ctx context.Context) ([]string, error) {
	rep, err := d.call(ctx, request{Op: OpList}, nil)
	if err != nil {
		return nil, err
	}
	if rep.Status != StatusOK {
		return nil, ErrBadRequest
	}

	names := make([]string, len(rep.Names))
	for i, n := range rep.Names {
		names[i] = string(n)
	}
	return names, nil
}

// Close closes the session
func (d *DirectoryClient) Close() error {
	return d.conn.Close()
}

func (d *DirectoryClient) call(ctx context.Context, req request, ep *net.UnixConn) (reply, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stop := d.conn.Interrupt(ctx)
	defer stop()

	var rep reply
	if err := d.conn.Send(req, ep); err != nil {
		return rep, ctxErr(ctx, err)
	}
	if h, err := d.conn.Receive(&rep); err != nil {
		return rep, ctxErr(ctx, err)
	} else if h != nil {
		h.Close()
	}
	return rep, nil
}

func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// ProviderClient forwards ConnectToService over a provider binding
type ProviderClient struct {
	conn   *transport.Conn
	logger *zap.Logger
}

// NewProviderClient takes ownership of conn
func NewProviderClient(conn *net.UnixConn, logger *zap.Logger) *ProviderClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProviderClient{conn: transport.NewConn(conn), logger: logger}
}

// ConnectToService sends ep to the remote provider. Failures are logged and
// ep is released.
func (p *ProviderClient) ConnectToService(name string, ep *net.UnixConn) {
	if ep == nil {
		return
	}
	if err := p.conn.Send(request{Op: OpConnect, Name: []byte(name)}, ep); err != nil {
		p.logger.Warn("Failed to forward service request", zap.ByteString("name", []byte(name)), zap.Error(err))
	}
}

// Close closes the binding
func (p *ProviderClient) Close() error {
	return p.conn.Close()
}

var _ Provider = (*ProviderClient)(nil)
