// Package server provides HTTP routing, middleware, and the manual ingest trigger.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns.
//
// # Ingest Endpoints
//
// [IngestHandler] exposes:
//   - POST /api/ingest : start a run; 202 with the run ID, 409 while a run is active
//   - GET /api/ingest/last : the most recent run summary, 404 before the first run
//   - GET /api/catalog/stats : catalog row counts
//
// Requests must carry "Authorization: Bearer <token>" when a trigger token is configured ([BearerAuth]).
// The health route stays open.
package server
