// Package auth guards the simulator's HTTP surface with one configured
// login.
//
// A successful login yields an HS256 JWT whose "sid" claim names the
// simulated home created for it; every protected request acts on that
// home only. The login password may be configured in plain text for demos
// or as an Argon2id PHC string (see HashPassword).
package auth
