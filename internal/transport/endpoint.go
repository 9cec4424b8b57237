package transport

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Pair creates two connected endpoints.
func Pair() (*net.UnixConn, *net.UnixConn, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create socket pair: %w", err)
	}

	a, err := fdConn(fds[0])
	if err != nil {
		unix.Close(fds[1])
		return nil, nil, err
	}
	b, err := fdConn(fds[1])
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, b, nil
}

// EndpointFromFile adopts f as an endpoint. f is closed in all cases.
func EndpointFromFile(f *os.File) (*net.UnixConn, error) {
	defer f.Close()

	c, err := net.FileConn(f)
	if err != nil {
		return nil, fmt.Errorf("failed to adopt %s: %w", f.Name(), err)
	}
	uc, ok := c.(*net.UnixConn)
	if !ok {
		c.Close()
		return nil, fmt.Errorf("%s is not a unix socket", f.Name())
	}
	return uc, nil
}

// fdConn takes ownership of fd.
func fdConn(fd int) (*net.UnixConn, error) {
	return EndpointFromFile(os.NewFile(uintptr(fd), fmt.Sprintf("endpoint:%d", fd)))
}
