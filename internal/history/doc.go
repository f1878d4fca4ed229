// Package history keeps the per-session journal of executed reversible
// calendar actions.
//
// The store is process-wide, in-memory state: a mutex-guarded map from an
// opaque session key to a bounded, most-recent-first list of action
// records. It is created once at startup, grows lazily per first-seen
// session, and survives only for the process lifetime. Session keys are
// derived from the caller's credential by hashing; the store never decodes
// or validates the credential itself.
//
// Each session holds at most a fixed number of records (default 50);
// inserting past capacity evicts the oldest entry. An optional TTL janitor
// drops sessions that have been idle longer than a configured duration;
// without it, a long-running process accumulates journals for every
// credential it has ever seen.
package history
