// Package app wires the measures service together: telemetry, output
// sinks, the pipeline runner, the services and the HTTP router.
//
// # Initialization Flow
//
//	1. Resolve and create the input, output and log directories
//	2. Initialize OpenTelemetry and the application metrics
//	3. Open the configured output sinks
//	4. Build the pipeline runner and the services on top of it
//	5. Set up middleware, handlers and the /metrics endpoint
//
// # Usage
//
// The web server runs until its context is cancelled:
//
//	a, err := app.New(ctx, cfg, paths, logger)
//	if err != nil {
//	    return err
//	}
//	return a.Run(ctx)
//
// Batch tools reuse the same wiring and call a.Runner directly, followed by
// a.Close to flush sinks and telemetry.
//
// # Error Handling
//
// All initialization errors are returned to the caller. The package never
// calls os.Exit, leaving the exit code to main.
package app
