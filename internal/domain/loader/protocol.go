package loader

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/svc"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/transport"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Client.Load when the loader has no package
var ErrNotFound = errors.New("package not found")

type loadRequest struct {
	URL string `json:"url"`
}

// loadResponse precedes Size raw package bytes
type loadResponse struct {
	Found bool `json:"found"`
	Size  int  `json:"size"`
}

// Connector publishes the loader in a service directory
func (l *Loader) Connector() svc.Connector {
	return func(ep *net.UnixConn) {
		go l.Serve(ep)
	}
}

// Serve answers load requests on ep until the peer closes it
func (l *Loader) Serve(ep *net.UnixConn) {
	conn := transport.NewConn(ep)
	defer conn.Close()

	for {
		var req loadRequest
		h, err := conn.Receive(&req)
		if err != nil {
			return
		}
		if h != nil {
			h.Close()
		}

		data, ok := l.Load(req.URL)
		if err := conn.Send(loadResponse{Found: ok, Size: len(data)}, nil); err != nil {
			l.logger.Warn("Failed to answer load request", zap.String("url", req.URL), zap.Error(err))
			return
		}
		if len(data) > 0 {
			if err := conn.Write(data); err != nil {
				l.logger.Warn("Failed to send package", zap.String("url", req.URL), zap.Error(err))
				return
			}
		}
	}
}

// Client requests packages from a remote loader
type Client struct {
	conn *transport.Conn
}

// NewClient takes ownership of ep
func NewClient(ep *net.UnixConn) *Client {
	return &Client{conn: transport.NewConn(ep)}
}

// Load fetches the package for url
func (c *Client) Load(ctx context.Context, url string) ([]byte, error) {
	stop := c.conn.Interrupt(ctx)
	defer stop()

	if err := c.conn.Send(loadRequest{URL: url}, nil); err != nil {
		return nil, wrap(ctx, err)
	}

	var resp loadResponse
	h, err := c.conn.Receive(&resp)
	if err != nil {
		return nil, wrap(ctx, err)
	}
	if h != nil {
		h.Close()
	}
	if !resp.Found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}

	data, err := c.conn.ReadFull(resp.Size)
	if err != nil {
		return nil, wrap(ctx, err)
	}
	return data, nil
}

// Close closes the connection to the loader
func (c *Client) Close() error {
	return c.conn.Close()
}

func wrap(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("loader unavailable: %w", err)
}
