package app

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/process"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/svc"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/transport"
	"go.uber.org/zap"
)

// LauncherServiceName is published by every environment
const LauncherServiceName = "appmgr.ApplicationLauncher"

// ErrLaunchFailed is returned by LauncherClient when the environment could
// not start the application
var ErrLaunchFailed = errors.New("launch failed")

type launchRequest struct {
	URL       string   `json:"url"`
	Arguments []string `json:"arguments,omitempty"`
}

type launchReply struct {
	OK         bool   `json:"ok"`
	Controller string `json:"controller,omitempty"`
}

func (e *Environment) launcherConnector() svc.Connector {
	return func(ep *net.UnixConn) {
		go e.serveLauncher(transport.NewConn(ep))
	}
}

// serveLauncher launches one application per request. A handle sent with a
// request becomes the application's controller channel.
func (e *Environment) serveLauncher(conn *transport.Conn) {
	defer conn.Close()

	for {
		var req launchRequest
		ctrl, err := conn.Receive(&req)
		if err != nil {
			return
		}

		var rep launchReply
		c, ok := e.CreateApplication(context.Background(), process.LaunchInfo{URL: req.URL, Arguments: req.Arguments}, ctrl)
		if ok {
			rep.OK = true
			rep.Controller = c.ID().String()
		}
		if err := conn.Send(rep, nil); err != nil {
			e.logger.Debug("Launcher client went away", zap.Error(err))
			return
		}
	}
}

// LauncherClient requests launches from an environment's launcher service
type LauncherClient struct {
	conn *transport.Conn
}

// NewLauncherClient takes ownership of ep
func NewLauncherClient(ep *net.UnixConn) *LauncherClient {
	return &LauncherClient{conn: transport.NewConn(ep)}
}

// CreateApplication launches info. controller, when non-nil, is consumed and
// becomes the application's control channel. The controller ID is returned.
func (l *LauncherClient) CreateApplication(ctx context.Context, info process.LaunchInfo, controller *net.UnixConn) (string, error) {
	stop := l.conn.Interrupt(ctx)
	defer stop()

	if err := l.conn.Send(launchRequest{URL: info.URL, Arguments: info.Arguments}, controller); err != nil {
		return "", launcherErr(ctx, err)
	}

	var rep launchReply
	h, err := l.conn.Receive(&rep)
	if h != nil {
		h.Close()
	}
	if err != nil {
		return "", launcherErr(ctx, err)
	}
	if !rep.OK {
		return "", fmt.Errorf("%w: %s", ErrLaunchFailed, info.URL)
	}
	return rep.Controller, nil
}

// Close closes the launcher session
func (l *LauncherClient) Close() error {
	return l.conn.Close()
}

func launcherErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("launcher unavailable: %w", err)
}
