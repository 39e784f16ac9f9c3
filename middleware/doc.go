// Package middleware provides composable middleware for job execution.
//
// A [Middleware] wraps the handler of a claimed job. Middleware are
// composed with [Chain] and applied by the worker pool before each job
// runs. The first middleware in the slice is the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] logs job name, queue, duration and outcome
//   - [Recover] turns panics into errors
//   - [Timeout] cancels the job context after Execution.Timeout
//   - [Tracing] wraps execution in an OpenTelemetry span
//   - [Metrics] records executions on the shared observability instruments
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, e *middleware.Execution, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
package middleware
