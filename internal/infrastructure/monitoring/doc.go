/*
Package monitoring provides Prometheus metrics for the component manager.

# Overview

Metrics are registered on an injected registerer so tests can use a private
registry. All recording methods are safe on a nil *Metrics.

# Features

- Environment counts (active, created)
- Controller counts and terminations by reason
- Launch results and latency
- Admin HTTP request metrics
- Uptime

# Usage

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	router.Use(monitoring.Middleware(metrics))

	timer := monitoring.NewTimer(metrics)
	// ... launch ...
	timer.Stop(monitoring.LaunchSucceeded)

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
