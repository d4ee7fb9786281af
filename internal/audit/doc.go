// Package audit implements async event dispatching for credential operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, slog, no-op).
//   - [Dispatcher]: buffered async relay. Under drop-if-full it still waits for
//     critical events, and it redacts secret-looking metadata before queuing.
//   - [Event]: structured audit record with id, timestamp, type, user, provider, purpose, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; that belongs to the Manager and flow functions.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import goIdentity or any sibling internal package.
//   - Carry tokens, codes, stamps or password material in events.
package audit
