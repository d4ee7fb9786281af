// Package notify delivers goIdentity tokens to users.
//
// The Manager never sends anything itself. A Notifier asks the Manager for a
// token and hands the rendered Message to a Sender: PostmarkSender in
// production, LogSender during development.
//
// # What this package must NOT do
//
//   - Log or persist token values (LogSender logs recipients and tags only).
//   - Retry deliveries; callers own retry policy.
package notify
