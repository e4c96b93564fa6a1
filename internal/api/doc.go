// Package api implements the HTTP REST API and WebSocket server for homesim.
//
// This package provides:
//   - Login that starts a simulated home and returns a JWT bound to it
//   - REST endpoints for every home action, the activity log and the journal
//   - A WebSocket hub that streams each session's events to its clients
//   - Middleware stack (request ID, logging, recovery, CORS, auth)
//
// # Sessions
//
// Every successful login creates a fresh home. The token's "sid" claim
// names it, and protected routes act only on that home. When the session
// expires or the user logs out, the token is rejected with 401 and any
// WebSocket clients of the session receive a session.closed event before
// being disconnected.
//
// # Security
//
// WebSocket connections use single-use tickets to prevent token leakage in
// URLs. A ticket inherits the session of the token that requested it.
//
// # Graceful Degradation
//
// MQTT, InfluxDB and the journal are optional. Without a journal the
// journal endpoints answer 503; everything else keeps working.
package api
