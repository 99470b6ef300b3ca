// Package store defines the contract between the queue and its storage
// engines. Engines declare which capabilities they implement (basic
// queueing, channel routing, deadletter, channel-scoped deadletter, stale
// claim reclamation) and callers branch on that declaration instead of
// probing concrete types at every call site.
package store
