// Package logging provides structured logging using uber/zap.
//
// Two modes are offered:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Logs go to stderr by default; stdout belongs to launched applications.
// Domain packages accept a plain *zap.Logger and fall back to a no-op
// logger, so only the command wires this package.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	defer logger.Sync()
//	logger.Info("Root environment ready", zap.Strings("path", path))
package logging
