// Package accounts provides the user account subsystem: registration,
// email validation, password management, and session token issuance, all
// persisted via Bun.
//
// Account lifecycle:
//   - Registration creates a Credential and Account pair inside one
//     transaction. New accounts start deactivated and stay that way until
//     the owner redeems an email validation token.
//   - Validation tokens are opaque, single use, and time bounded. Consuming
//     one flips email_validated and is_active together; the write is
//     conditioned on the stored token so concurrent consumes cannot both
//     win.
//   - Login enforces an ordered gate: password first, then email
//     validation, then the active flag. Superusers skip the validation
//     check only.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther and the
//     command handlers to describe registration, validation, login, and
//     password events. Sinks run best-effort (errors are logged) so you can
//     forward to a database or queue without blocking authentication.
//
// Claims decoration:
//   - ClaimsDecorator is invoked before session tokens are signed.
//     Decorators may enrich the metadata extension while protected claims
//     (sub, iss, aud, exp, etc.) remain immutable.
package accounts
