// Package encryption implements the outbound Olm encryption machine.
//
// The Machine is the public entry point: given a set of recipient devices
// and a plaintext event, it guarantees every device either already has a
// ratchet session or gets one (batching the one-time-key claim into a
// single homeserver call), verifies claimed keys against caller-supplied
// trust anchors, then encrypts the event once per device and persists the
// advanced ratchet state before anything else may touch it.
//
// # Failure policy
//
//   - A device whose claimed key fails verification, or that has no key
//     left to claim, is skipped; the batch continues and the device is
//     silently absent from the result.
//   - A failed claim request aborts establishment for the whole batch
//     with ErrKeyClaimFailed and mutates nothing.
//   - A store write failure after the ratchet advanced is fatal for the
//     call (ErrSessionStoreFailure); retrying would double-advance the
//     ratchet and permanently desynchronize from the peer.
//
// All operations touching one device's session are serialized by a
// per-identity-key lock spanning read-or-create through persist; calls
// for different devices proceed in parallel.
package encryption
