// Package authapi exposes the session lifecycle over HTTP.
//
// Routes: POST /register, /login, /refresh-token, /logout, /logout-all and
// GET /me. Error bodies are {"error":{"code","message"}} and are never cached.
package authapi
