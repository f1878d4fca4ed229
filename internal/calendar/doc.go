// Package calendar provides the Google Calendar backend for the agent.
//
// The package exposes a small Service interface (list, get, create, update,
// delete) over raw *calendar.Event bodies so that rollback snapshots taken
// by the agent round-trip through the API unchanged. Client implements the
// interface against the Google Calendar v3 API using a caller-supplied
// OAuth2 access token; a new Client is built per request.
//
// Backend failures are classified into a small closed taxonomy (see Error
// and Kind) so that callers can dispatch on authentication, permission and
// not-found conditions without inspecting googleapi internals.
package calendar
