// Package cmd implements the calagent command line interface.
//
// The root command defaults to serve, which runs the HTTP API. All
// runtime tuning is exposed as flags with environment fallbacks so the
// binary works both locally and under a process manager.
package cmd
