// Package server exposes the agent and the calendar backend over HTTP.
//
// Every data route requires a bearer access token; the token is both the
// calendar credential and the source of the session key that scopes the
// undo journal. Handlers build a per-request calendar client, so the
// server itself holds no credentials.
package server
