// Package server wires the component manager together: configuration,
// logging, metrics and tracing around an environment tree whose root is
// hosted by a root.Host, plus the optional admin HTTP surface.
//
// Lifecycle:
//
//	s, err := server.NewServer(cfg, boot)
//	go s.Run(ctx)
//	s.Start(ctx)    // mount root services, launch initial apps
//	s.Shutdown(ctx) // destroy the root environment and every application
package server
