// Package svc routes service names to connectors.
//
// A Namespace answers a fixed table of names and closes any endpoint whose
// name it does not know. A Bridge answers its own table first and forwards
// everything else, verbatim, to a backend Provider. Both expose the same
// Directory surface: provider bindings, directory sessions, descriptors that
// can be handed to a child process, and filesystem mounts.
//
// Names are opaque byte strings. No normalization or validation is applied.
//
// Example Usage:
//
//	ns := svc.NewNamespace(logger)
//	ns.AddService("echo", func(ep *net.UnixConn) { go serveEcho(ep) })
//	ns.ConnectToService("echo", ep)
package svc
