// Package task runs queued jobs. It provides the handler registry that maps
// job type identifiers to constructors, and the Worker that polls channels,
// executes jobs and applies the retry/deadletter policy on failure.
//
// A worker moves through Polling, Executing, Retrying, Deadlettering and
// Stopped. Job-level failures never end the loop; only single-shot mode,
// the job and runtime limits, or context cancellation stop it, and all of
// them stop it with a nil error.
package task
