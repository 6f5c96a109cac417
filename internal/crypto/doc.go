// Package crypto exposes the primitives the bridge builds on.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519,
//     DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - Canonical JSON in the form signature checks require (CanonicalJSON)
//   - Detached JSON signatures over canonical JSON (SignJSON,
//     VerifySignatureJSON)
//   - Unpadded base64 as used for keys and signatures on the wire
//     (B64, UnB64)
//   - Passphrase-derived secret encryption for data at rest
//     (EncryptSecret, DecryptSecret)
//   - Short key fingerprints for display/logging (IdentityFingerprint,
//     SigningFingerprint)
//
// # Notes
//
// Verification never returns an error: a missing, malformed, or corrupt
// signature block is treated identically to a bad signature, and the
// object is rejected.
package crypto
