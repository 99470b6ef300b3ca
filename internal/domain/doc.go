// Package domain contains the queue's core data types: the job envelope
// stored per unit of work, the deadletter record kept for jobs that
// exhausted their retry budget, and the naming rules that keep channel and
// job identifiers from escaping their storage scope. It has no knowledge of
// any particular storage engine.
package domain
