package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/process"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/infrastructure/server"
)

func main() {
	configPath := flag.String("config", "", "Initial configuration file (JSON, YAML or TOML)")
	dev := flag.Bool("dev", false, "Development logging")
	noAdmin := flag.Bool("no-admin", false, "Disable the admin HTTP server")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-config file] [url [args...]]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dev {
		cfg.Logging.Development = true
	}
	if *noAdmin {
		cfg.Admin.Enabled = false
	}

	logger := newLogger(cfg)

	boot, err := bootstrap(*configPath, flag.Args(), logger.Logger)
	if err != nil {
		logger.Fatal("Failed to read initial configuration", zap.Error(err))
	}

	srv, err := server.NewServer(cfg, boot, server.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run(ctx)
	}()

	srv.Start(ctx)

	select {
	case <-ctx.Done():
	case err := <-errChan:
		if err != nil {
			logger.Error("Server error", zap.Error(err))
		}
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		log.Printf("Error during shutdown: %v", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger from cfg. An invalid level falls back
// to the mode's defaults rather than aborting startup.
func newLogger(cfg *config.Config) *logging.Logger {
	logger, err := logging.New(logging.ForLevel(cfg.Logging.Level, cfg.Logging.Development))
	if err == nil {
		return logger
	}

	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}
	logger.Warn("Invalid logging configuration, using defaults",
		zap.String("level", cfg.Logging.Level),
		zap.Error(err),
	)
	return logger
}

// bootstrap reads the configuration file, if any, and appends the
// positional launch request. With neither, the default file is used. A
// missing file counts as empty, but an explicit one is reported.
func bootstrap(path string, args []string, logger *zap.Logger) (*config.Bootstrap, error) {
	var (
		boot *config.Bootstrap
		err  error
	)
	switch {
	case path != "":
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			logger.Warn("Initial configuration not found", zap.String("path", path))
		}
		boot, err = config.ReadBootstrapIfExists(path)
	case len(args) == 0:
		boot, err = config.ReadBootstrapIfExists(config.DefaultBootstrapPath)
	default:
		boot = &config.Bootstrap{}
	}
	if err != nil {
		return nil, err
	}

	if len(args) > 0 {
		boot.InitialApps = append(boot.InitialApps, process.LaunchInfo{
			URL:       args[0],
			Arguments: args[1:],
		})
	}
	return boot, nil
}
