// Package app wires the sales dashboard together and owns its lifecycle.
//
// # Initialization Flow
//
// New performs, in order:
//
//  1. Resolve paths and create the export and log directories
//  2. Initialize OpenTelemetry and the dashboard metrics
//  3. Open the configured source and load the dataset once
//  4. Load the region boundaries (a missing file only disables the map)
//  5. Start the websocket hub and build the services
//  6. Build the chi router and the HTTP server
//
// A missing input table in step 3 is fatal: New returns the error and the
// caller is expected to exit non-zero.
//
// # Usage
//
//	a, err := app.NewApplication(ctx)
//	if err != nil {
//	    fmt.Fprintln(os.Stderr, err)
//	    os.Exit(1)
//	}
//	if err := a.Run(ctx); err != nil {
//	    fmt.Fprintln(os.Stderr, err)
//	    os.Exit(1)
//	}
//
// Run blocks until SIGINT, SIGTERM or ctx cancellation and then shuts the
// server, hub, source and telemetry down.
package app
