package types

// Signatures is the detached signature block attached to signed JSON
// objects: user ID -> "ed25519:DEVICEID" -> unpadded base64 signature.
type Signatures map[UserID]map[KeyID]string

// DeviceIdentity is a remote device's public key material as currently
// trusted by this client. It is sourced from the device directory and is
// read-only to the encryption core; the SigningKey is the trust anchor for
// every signature check concerning the device.
type DeviceIdentity struct {
	UserID      UserID     `json:"user_id"`
	DeviceID    DeviceID   `json:"device_id"`
	IdentityKey Curve25519 `json:"identity_key"`
	SigningKey  Ed25519    `json:"signing_key"`

	DisplayName string `json:"display_name,omitempty"`
}

// DeviceKeys is the signed device key object published by a device and
// returned from a key query.
type DeviceKeys struct {
	UserID     UserID           `json:"user_id"`
	DeviceID   DeviceID         `json:"device_id"`
	Algorithms []KeyAlgorithm   `json:"algorithms"`
	Keys       map[KeyID]string `json:"keys"`
	Signatures Signatures       `json:"signatures"`

	Unsigned struct {
		DeviceDisplayName string `json:"device_display_name,omitempty"`
	} `json:"unsigned,omitempty"`
}

// IdentityKey returns the curve25519 key from the key map, or "" when the
// device published none.
func (dk *DeviceKeys) IdentityKey() Curve25519 {
	return Curve25519(dk.Keys[NewKeyID(AlgorithmCurve25519, string(dk.DeviceID))])
}

// SigningKey returns the ed25519 key from the key map, or "" when the
// device published none.
func (dk *DeviceKeys) SigningKey() Ed25519 {
	return Ed25519(dk.Keys[NewKeyID(AlgorithmEd25519, string(dk.DeviceID))])
}
