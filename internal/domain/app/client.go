package app

import (
	"context"
	"net"

	"github.com/GriffinCanCode/AgentOS/appmgr/internal/transport"
)

// ControllerClient drives a controller over its control channel
type ControllerClient struct {
	conn *transport.Conn
	done chan struct{}
}

// NewControllerClient takes ownership of ep, the peer of the endpoint passed
// to CreateApplication.
func NewControllerClient(ep *net.UnixConn) *ControllerClient {
	c := &ControllerClient{
		conn: transport.NewConn(ep),
		done: make(chan struct{}),
	}
	go c.drain()
	return c
}

// drain notices the controller closing its end
func (c *ControllerClient) drain() {
	defer close(c.done)
	for {
		var msg controlRequest
		h, err := c.conn.Receive(&msg)
		if h != nil {
			h.Close()
		}
		if err != nil {
			return
		}
	}
}

// Kill terminates the application and waits until the controller is gone
func (c *ControllerClient) Kill(ctx context.Context) error {
	if err := c.conn.Send(controlRequest{Op: opKill}, nil); err != nil {
		select {
		case <-c.done:
			return nil
		default:
			return err
		}
	}
	return c.Wait(ctx)
}

// Detach lets the application outlive this client
func (c *ControllerClient) Detach() error {
	return c.conn.Send(controlRequest{Op: opDetach}, nil)
}

// Wait blocks until the controller terminates
func (c *ControllerClient) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drops the channel. An Active controller terminates in response.
func (c *ControllerClient) Close() error {
	return c.conn.Close()
}
