// Package password implements password hashing, verification with format
// migration, and the composable password policy.
//
// # Output format
//
// New hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.Verify] also accepts PBKDF2-SHA256 hashes
// ($pbkdf2-sha256$i=<iter>$<salt>$<hash>) and bcrypt hashes ($2a$, $2b$, $2y$).
// Those, and argon2id hashes produced with weaker parameters, verify as
// [SuccessRehashNeeded] so the caller can store a fresh hash.
//
// # Architecture boundaries
//
// This package owns hashing, verification and rule evaluation only. Deciding
// when to rehash, persisting hashes, and mapping policy violations to user
// facing failures belongs to the Manager.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other goIdentity package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
