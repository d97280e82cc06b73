// Package http implements the HTTP handlers of the sales dashboard API.
// Handlers are thin: they parse and validate query parameters, call a
// service and render JSON with chi/render. Every error is answered with
// an RFC 7807 problem through errors.ErrorHandler.
//
// Routes mounted by the application:
//
//	GET  /api/health, /api/health/ready, /api/health/live, /api/version
//	GET  /api/dashboard/{options,overview,geography,map,customers,forecast,export}
//	POST /api/dashboard/reload
//	GET  /api/stats
//	GET  /metrics
//	GET  /ws
//
// View endpoints accept start and end (YYYY-MM-DD, end inclusive), states
// (comma separated two-letter codes; present but empty selects no state),
// metric (revenue, average_ticket, order_count) and format (csv, xlsx).
package http
