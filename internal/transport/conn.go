package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/sys/unix"
)

// MaxFrameSize bounds the JSON body of a single frame.
const MaxFrameSize = 1 << 20

const headerSize = 4

var (
	ErrFrameTooLarge  = errors.New("frame exceeds maximum size")
	ErrTooManyHandles = errors.New("frame carried more than one handle")
)

// Conn exchanges framed messages over an endpoint.
type Conn struct {
	c   *net.UnixConn
	rmu sync.Mutex
	wmu sync.Mutex
}

// NewConn wraps c. The Conn owns c from here on.
func NewConn(c *net.UnixConn) *Conn {
	return &Conn{c: c}
}

// Send writes msg as one frame. If handle is non-nil its descriptor travels
// with the frame and handle is closed locally; this happens even when the
// send fails, so the caller never keeps a handle it tried to give away.
func (c *Conn) Send(msg any, handle *net.UnixConn) error {
	var oob []byte
	if handle != nil {
		f, err := handle.File()
		handle.Close()
		if err != nil {
			return fmt.Errorf("failed to extract handle: %w", err)
		}
		defer f.Close()
		oob = unix.UnixRights(int(f.Fd()))
	}

	body, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	if len(body) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	frame := make([]byte, headerSize+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[headerSize:], body)

	c.wmu.Lock()
	defer c.wmu.Unlock()

	n, _, err := c.c.WriteMsgUnix(frame, oob, nil)
	if err != nil {
		return err
	}
	if n < len(frame) {
		if _, err := c.c.Write(frame[n:]); err != nil {
			return err
		}
	}
	return nil
}

// Receive reads one frame into msg and returns the handle that travelled
// with it, if any. io.EOF means the peer closed its end.
func (c *Conn) Receive(msg any) (*net.UnixConn, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	var hdr [headerSize]byte
	oob := make([]byte, unix.CmsgSpace(4))

	n, oobn, _, _, err := c.c.ReadMsgUnix(hdr[:], oob)
	if err != nil {
		return nil, err
	}
	if n == 0 && oobn == 0 {
		return nil, io.EOF
	}

	handle, herr := parseHandle(oob[:oobn])
	fail := func(err error) (*net.UnixConn, error) {
		if handle != nil {
			handle.Close()
		}
		return nil, err
	}
	if herr != nil {
		return fail(herr)
	}

	if n < headerSize {
		if _, err := io.ReadFull(c.c, hdr[n:]); err != nil {
			return fail(unexpectedEOF(err))
		}
	}

	size := binary.BigEndian.Uint32(hdr[:])
	if size > MaxFrameSize {
		return fail(ErrFrameTooLarge)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(c.c, body); err != nil {
		return fail(unexpectedEOF(err))
	}
	if err := sonic.Unmarshal(body, msg); err != nil {
		return fail(fmt.Errorf("failed to decode frame: %w", err))
	}
	return handle, nil
}

// Write sends a raw payload. Callers announce its size in a preceding frame.
func (c *Conn) Write(p []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	_, err := c.c.Write(p)
	return err
}

// ReadFull reads exactly n raw bytes.
func (c *Conn) ReadFull(n int) ([]byte, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	buf := make([]byte, n)
	if _, err := io.ReadFull(c.c, buf); err != nil {
		return nil, unexpectedEOF(err)
	}
	return buf, nil
}

// Close closes the endpoint. The peer observes EOF.
func (c *Conn) Close() error {
	return c.c.Close()
}

func parseHandle(oob []byte) (*net.UnixConn, error) {
	if len(oob) == 0 {
		return nil, nil
	}

	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, fmt.Errorf("failed to parse control message: %w", err)
	}

	var fds []int
	for i := range msgs {
		rights, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			continue
		}
		fds = append(fds, rights...)
	}
	if len(fds) == 0 {
		return nil, nil
	}
	if len(fds) > 1 {
		for _, fd := range fds {
			unix.Close(fd)
		}
		return nil, ErrTooManyHandles
	}
	return fdConn(fds[0])
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Interrupt makes I/O blocked on the endpoint fail once ctx is done. The
// returned stop function detaches ctx. An interrupted Conn should be closed.
func (c *Conn) Interrupt(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		c.c.SetDeadline(time.Unix(1, 0))
	})
}
