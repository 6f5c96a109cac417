package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	domaintypes "mxbridge/internal/domain/types"
)

// IdentityFingerprint renders a short digest of a device's Curve25519
// identity key for display and log lines.
func IdentityFingerprint(key domaintypes.Curve25519) (string, error) {
	return keyFingerprint(string(key))
}

// SigningFingerprint renders a short digest of a device's Ed25519
// signing key, the value users compare when verifying a device.
func SigningFingerprint(key domaintypes.Ed25519) (string, error) {
	return keyFingerprint(string(key))
}

// keyFingerprint hashes the raw bytes behind a key's wire-form
// unpadded base64, keeps the first 10 bytes of the SHA-256, and hex
// encodes them in groups of four for side-by-side comparison.
func keyFingerprint(b64 string) (string, error) {
	raw, err := UnB64(b64)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)

	var groups []string
	for i := 0; i < 10; i += 2 {
		groups = append(groups, hex.EncodeToString(sum[i:i+2]))
	}
	return strings.Join(groups, " "), nil
}
