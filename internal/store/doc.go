// Package store persists the bridge's durable state.
//
// Contents
//
//   - BoltStore: a bbolt-backed store implementing the crypto store
//     (account + ratchet sessions, sealed at rest under a pickle key),
//     the device identity cache, and the room-state store with an
//     in-memory read-through cache.
//   - MemoryStore: an in-memory crypto store for tests.
//
// # Notes
//
// Session blobs are CBOR pickles encrypted with a key derived once from
// the configured pickle passphrase. A session write must complete before
// the session is considered available to any other caller; BoltStore's
// Update transactions give that ordering.
package store
