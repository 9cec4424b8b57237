// Package config provides 12-factor configuration for the component manager.
//
// Process settings are loaded from environment variables with sensible
// defaults. The loader search path and the initial applications come from a
// bootstrap file in JSON, YAML or TOML.
//
// Configuration Sections:
//   - Manager: staging directory, launch timeout, optional services mount
//   - Admin: admin HTTP server (host, port, CORS origins)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting of the admin API
//
// Example Usage:
//
//	cfg, err := config.Load()
//	boot, err := config.ReadBootstrapIfExists(config.DefaultBootstrapPath)
//	path, err := config.ExpandPath(boot.Path)
//
// Bootstrap file:
//
//	{
//	  "path": ["/system/apps", "/opt/*/apps"],
//	  "initial-apps": ["file://shell", ["file://logger", "--verbose"]]
//	}
//
// Environment Variables:
//   - APPMGR_STAGING_DIR, APPMGR_LAUNCH_TIMEOUT, APPMGR_MOUNT
//   - ADMIN_ENABLED, ADMIN_HOST, ADMIN_PORT, ADMIN_CORS_ORIGINS
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
