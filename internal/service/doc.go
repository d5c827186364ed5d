// Package service implements business logic for the hostfold correlation
// engine.
//
// This package provides service layers that coordinate between the HTTP
// handlers and the repository layer, implementing business rules,
// validation, and event publishing.
//
// # Services
//
// CorrelationService runs the three-phase engine: exact-IP merging,
// MAC-based device identity linking, and tag-similarity scoring. Runs are
// serialized by a lock and rejected while one is active.
//
// ConflictService records field disagreements between merge candidates
// and executes the deferred merge when an operator resolves one.
//
// DeviceService manages device identities: multi-homed devices whose
// per-subnet host records stay separate but share one identity.
//
// HostService exposes host reads, operator-directed merges, and the
// unified device view.
//
// ImportService folds normalized scan records into host rows, preferring
// MAC matches over IP matches and never overwriting a stored MAC.
//
// # Event System
//
// All services publish events via EventBus for real-time updates to
// connected clients via Server-Sent Events (SSE). Event types include
// merges, conflict detection and resolution, identity linking, and run
// lifecycle.
package service
