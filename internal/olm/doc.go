// Package olm implements the two-party double-ratchet primitive the
// encryption machine composes: long-term accounts, one-time keys, and
// per-device sessions.
//
// Contents
//
//   - Account: the local device's long-term identity (Curve25519 identity
//     key, Ed25519 signing key) plus its published one-time keys. Factory
//     for outbound and inbound sessions.
//   - Session: ratchet state bound to exactly one remote device. Encrypt
//     and Decrypt advance the ratchet as a side effect; callers persist
//     the session after every call.
//   - CBOR pickling for both, so stores can treat them as opaque blobs.
//
// # Notes
//
// Outbound establishment performs a triple Diffie–Hellman over the local
// identity key, a fresh ephemeral key, and the peer's claimed one-time
// key, then seeds the sending chain. The first messages of a session are
// pre-key messages (type 0) carrying the handshake material until a reply
// confirms the peer ratcheted up.
//
// Everything above this package treats it as an opaque trusted building
// block; nothing here does signature policy, batching, or persistence.
package olm
