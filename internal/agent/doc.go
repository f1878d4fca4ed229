// Package agent executes interpreted calendar action plans and provides
// one-step undo.
//
// The execution pipeline runs a plan's actions strictly in order, one
// result per action, and isolates failures at the action boundary: a
// failed action never aborts the batch. Successful mutations are
// journaled in the history store together with the snapshot needed to
// invert them.
//
// Deletes are special. The backend can report a delete as accepted before
// it is observable by subsequent reads, so every delete runs through a
// verification protocol: delete, wait a grace period, fetch the event
// again, and only trust the delete once the fetch comes back not-found.
// Deletes that exhaust their attempt budget unverified trigger a single
// bounded re-plan cycle; a second round of failures is surfaced as-is.
//
// Undo inverts the most recent journaled action: a create is deleted, an
// update is restored from its pre-update snapshot, and a delete is
// re-created from its snapshot under a new event id.
package agent
