/*
Package tracing provides lightweight span tracing for launches and admin
requests.

# Overview

Spans are created per operation, tagged, and submitted to a buffered
collector that writes them to the structured log. Trace context travels in
context.Context and, over HTTP, in the X-Trace-ID and X-Span-ID headers.

# Usage

	tracer := tracing.New("appmgr", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "create_application")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()
	span.SetTag("url", url)

# Performance

Span submission never blocks: when the 1000-span buffer is full the span is
dropped with a warning.
*/
package tracing
