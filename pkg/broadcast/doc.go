// Package broadcast propagates authorization state changes between the
// processes (or browser tabs) sharing one subject's remote state.
//
// Mutations publish an Event; subscribers merge incoming events into their
// local caches. Events carry a generation counter so conflicting concurrent
// updates resolve toward the state with strictly more progress: receivers
// discard events older than what they already hold instead of regressing.
//
// Two implementations are provided: MemoryBroadcaster for single-process
// fan-out and tests, and RedisBroadcaster for cross-process convergence over
// a Redis pub-sub channel. Both drop events for slow consumers rather than
// blocking publishers.
package broadcast
