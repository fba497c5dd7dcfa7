// Package http provides HTTP handlers and middleware for the IT admin API.
//
// The router exposes the following endpoints:
//   - POST /sessions: issues a session token. Body: {"email","password"}.
//     The token is returned in the body, the `X-Session-Token` header and a
//     `session_token` cookie.
//   - DELETE /sessions/current: revokes the current session token extracted
//     from the Authorization header or session cookie. Returns 204.
//   - GET /users, POST /users, GET /users/{id}, PATCH /users/{id},
//     DELETE /users/{id}: administrator account management exchanging the
//     `userDTO` payload defined in user_handler.go.
//   - GET /billing-reminders, PATCH /billing-reminders: the singleton billing
//     reminder configuration. PATCH merges only the fields present in the
//     request body.
//   - GET /billing-reminders/status: the live delivery status of the current
//     billing period.
//   - POST /billing-reminders/test: sends the reminder immediately to the
//     configured recipients without touching the delivery ledger.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
