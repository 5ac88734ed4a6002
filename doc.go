// Package auth provides the authentication and authorization core for the
// checkpoints backend: credential verification, JWT issuance, session
// validation, admin gating, and the password reset flow.
//
// Session model:
//   - Tokens are HS256 JWTs carrying a snapshot of the user (username,
//     role, isSubscribed) alongside the numeric id in sub. A token is
//     honored only while that snapshot still matches the live user row,
//     so any profile, role, or subscription change invalidates every
//     previously issued token without a revocation list.
//   - Browsers receive the token in an httpOnly cookie; API clients may
//     send it as an Authorization bearer header instead. The cookie wins
//     when both are present.
//
// Roles:
//   - USER, ADMIN, and SUPER_ADMIN form a strict hierarchy. The admin
//     surface admits ADMIN and SUPER_ADMIN and answers every denial with
//     the same error, regardless of cause.
//
// Password resets:
//   - Reset tokens are random UUIDs with a one hour lifetime. They are
//     single use: consuming one deletes it in the same transaction as
//     the password update, and expired tokens are purged on sight.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther and the
//     command handlers to describe login, registration, role change, and
//     password reset events. Sinks run best-effort (errors are logged) so
//     you can forward to a database or queue without blocking requests.
package auth
