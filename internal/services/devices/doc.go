// Package devices resolves remote device identities from the homeserver's
// key directory and caches the verified results.
//
// Contents:
//   - Directory: fetches device key objects via /keys/query, checks each
//     object's self-signature, and persists accepted identities.
//
// Notes:
//   - A device key object that fails its self-signature check, or whose
//     embedded user/device IDs disagree with the query, is dropped.
//   - Once an identity key has been stored for a device it is pinned; a
//     later query advertising a different key for the same device is
//     rejected and the stored identity kept.
package devices
