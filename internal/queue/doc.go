// Package queue is the operation surface producers and workers use: a thin
// Queue facade over one storage driver, a ChannelRouter decorator that binds
// a channel name to a channel-aware driver, and a Manager that hands out the
// right Queue for a channel.
//
// Channel routing degrades predictably. A driver without channel support is
// served through the default queue; a driver without channel-scoped
// deadletter falls back to its global deadletter store; a driver with no
// deadletter support replays nothing. Each fallback is logged as a warning
// and never returned as an error.
package queue
