// Package middleware provides the gin middleware stack for the admin
// surface.
//
//   - CORS: origins come from ADMIN_CORS_ORIGINS; request, trace and span
//     headers are allowed and exposed
//   - RateLimit: per-IP token bucket, idle clients are evicted
//   - GlobalRateLimit: one shared bucket
//   - RequestID: X-Request-ID propagation using prefixed ULIDs
//   - AccessLog: one zap line per request
//
// Example Usage:
//
//	router.Use(middleware.RequestID())
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Admin.AllowedOrigins...)))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
