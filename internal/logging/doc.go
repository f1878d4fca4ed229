// Package logging provides structured logging utilities for calagent.
//
// It centralizes attribute naming and PII handling on top of the standard
// library's slog package: user emails are hashed before logging, and
// credentials are never logged beyond a length indicator. Components take
// a *slog.Logger and scope it with the With* helpers.
package logging
