// Package auth provides the identity layer of a blog: signed action tokens,
// a bitmask permission registry, Bun backed account repositories and the
// account commands built on top of them.
//
// Tokens:
//   - TokenAuthority mints and verifies HS256 tokens carrying one of four
//     claim types (confirm, reset, change_email, auth). A token minted for one
//     claim never verifies as another, and every failure (bad signature,
//     malformed, expired, wrong claim) collapses to the same rejection.
//
// Permissions:
//   - Permission is a bit flag set (LOGIN, COMMENT, WRITE, MODERATE, ADMIN).
//     Roles hold a union of flags and SeedRolesHandler keeps the User,
//     Moderator and Administrator roles in sync, with exactly one default.
//   - Subject is evaluated by Can and Authorize. AnonymousSubject follows the
//     comment and registration flags of the configuration.
//
// Activity sinks:
//   - ActivitySink receives best-effort events for registration, confirmation,
//     password and email changes and token issuance. Sink errors are logged,
//     never returned.
//
// Comment throttling:
//   - CommentThrottle enforces a per session cooldown, backed by redis or an
//     in-memory store. CommentGate combines it with the COMMENT permission.
package auth
