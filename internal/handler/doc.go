// Package handler implements HTTP request handlers for the hostfold API.
//
// This package provides the HTTP layer for the correlation engine,
// handling requests for host records, device identities, conflict review,
// correlation runs, and record imports.
//
// # API Design
//
// All handlers follow REST conventions:
// - GET for retrieval
// - POST for creation and actions
// - DELETE for removal
//
// Errors are returned as JSON with appropriate HTTP status codes.
// Request bodies are validated before processing. State races surface as
// 409: triggering a run while one is active, resolving a conflict whose
// hosts were merged since detection, or linking an already-linked host.
//
// # Response Format
//
// Success responses return JSON data with appropriate status codes
// (200, 201, 204). Error responses return JSON with {error, details}
// structure.
//
// # Server-Sent Events
//
// The /events endpoint provides real-time updates via SSE, allowing
// clients to follow merges, conflicts, and run progress live.
//
// Middleware provides request logging, panic recovery, and CORS support.
package handler
