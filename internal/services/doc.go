// Package services implements the business logic layer of the sales
// dashboard. Handlers stay thin: they decode a request, call a service
// and render the result.
//
// # Services
//
//   - DashboardService: filters the cached dataset and computes every view
//     (options, overview, geography, map, customers, forecast, export) and
//     reloads the dataset on demand.
//   - HealthService: liveness, readiness and version reporting.
//
// # Errors
//
// Services return the sentinel errors of errors.go, or the AppError values
// produced by the source and dataset layers. Handlers map both to RFC 7807
// problems through errors.ErrorHandler.
//
// # Concurrency
//
// All services are safe for concurrent use. The dataset itself is
// immutable once loaded; reloading swaps the cached pointer.
package services
