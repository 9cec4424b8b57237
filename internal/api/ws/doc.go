// Package ws streams environment and controller lifecycle events to
// WebSocket clients.
//
// Message Types (Client → Server):
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - system: Subscription confirmed
//   - event: One lifecycle event
//   - pong: Reply to ping
//
// Example Usage:
//
//	handler := ws.NewHandler(hub, metrics, cfg.Admin.AllowedOrigins, logger)
//	router.GET("/events", handler.HandleConnection)
package ws
