// Package storage implements the persistence tiers behind the session
// pipeline.
//
// Three tiers with distinct contracts:
//
//   - durable: JSON files that survive restarts and hold arbitrary
//     JSON-serializable values (session record, cached login response,
//     resolved module data).
//   - signal: string files whose removal is observable by every other
//     process sharing the state directory. Removing the session sentinel
//     here is the logout broadcast; it carries no payload.
//   - transient: a per-process map that never touches disk.
//
// There is no transaction spanning tiers. A crash between two writes
// leaves a partial record, which session validation tolerates by treating
// any malformed record as "not authenticated".
package storage
