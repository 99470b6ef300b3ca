// Package filestore implements the queue's storage engine on a plain
// filesystem. Each job is one file under {path}/{channel}/{id}.job.
//
// The engine relies on a single concurrency primitive: rename is atomic,
// and only one renamer can succeed against a given source path. Enqueue
// writes to a temporary file and renames it into place, so a partially
// written job is never visible. Dequeue claims a job by renaming it to a
// .lock suffix; whoever wins the rename owns the job, everyone else moves
// on to the next candidate. Multiple worker processes can share one
// directory without any further locking.
//
// Layout:
//
//	{path}/{channel}/{id}.job             live job, {"class": ..., "payload": {...}}
//	{path}/{channel}/{id}.job.lock        claimed job, being read
//	{path}/{channel}/corrupted/{id}.job   quarantined, failed to parse after claim
//	{deadletter}/{channel}/{id}.job       deadletter record
package filestore
