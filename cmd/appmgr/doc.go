// Package main is the entry point for appmgr, the local component manager.
//
// appmgr creates the root environment, resolves packages through a
// file:// search path and launches the initial applications. It runs until
// signalled, then destroys the root environment and with it every
// application it started.
//
// Configuration:
//   - Initial configuration file: search path and initial applications
//   - Environment variables (APPMGR_*, ADMIN_*, LOG_*, RATE_LIMIT_*)
//   - CLI flags
//
// Usage:
//
//	# Read /etc/appmgr/initial.config when present
//	./appmgr
//
//	# Explicit configuration
//	./appmgr -config initial.yaml
//
//	# Launch one application with arguments
//	./appmgr file:///usr/bin/hello --greeting hi
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
