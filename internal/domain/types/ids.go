package types

import "strings"

// UserID is a fully qualified Matrix user ID, e.g. "@bridge:example.com".
type UserID string

// String returns the string form of the user ID.
func (u UserID) String() string { return string(u) }

// Localpart returns the part between "@" and ":", or the whole ID when it
// is not in the canonical form.
func (u UserID) Localpart() string {
	s := strings.TrimPrefix(string(u), "@")
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i]
	}
	return s
}

// Homeserver returns the server name portion of the user ID.
func (u UserID) Homeserver() string {
	if i := strings.IndexByte(string(u), ':'); i >= 0 {
		return string(u)[i+1:]
	}
	return ""
}

// DeviceID identifies one device of a user.
type DeviceID string

// String returns the string form of the device ID.
func (d DeviceID) String() string { return string(d) }

// RoomID identifies a Matrix room.
type RoomID string

// String returns the string form of the room ID.
func (r RoomID) String() string { return string(r) }

// RoomAlias is a human-readable room address, e.g. "#bridge:example.com".
type RoomAlias string

// String returns the string form of the alias.
func (a RoomAlias) String() string { return string(a) }

// EventType names a Matrix event type, e.g. "m.room.encrypted".
type EventType string

// String returns the string form of the event type.
func (t EventType) String() string { return string(t) }

// Curve25519 is a Curve25519 public key in unpadded base64, the form keys
// take on the Matrix wire and in key-value store keys.
type Curve25519 string

// String returns the string form of the key.
func (k Curve25519) String() string { return string(k) }

// Ed25519 is an Ed25519 public key in unpadded base64.
type Ed25519 string

// String returns the string form of the key.
func (k Ed25519) String() string { return string(k) }

// KeyAlgorithm names a key or encryption algorithm.
type KeyAlgorithm string

const (
	// AlgorithmEd25519 is the device signing key algorithm.
	AlgorithmEd25519 KeyAlgorithm = "ed25519"
	// AlgorithmCurve25519 is the device identity key algorithm.
	AlgorithmCurve25519 KeyAlgorithm = "curve25519"
	// AlgorithmSignedCurve25519 is the one-time key algorithm claimed for
	// outbound session establishment.
	AlgorithmSignedCurve25519 KeyAlgorithm = "signed_curve25519"
	// AlgorithmOlmV1 is the event encryption algorithm produced by the
	// outbound encryption machine.
	AlgorithmOlmV1 KeyAlgorithm = "m.olm.v1.curve25519-aes-sha2"
)

// KeyID is an algorithm-qualified key identifier such as
// "ed25519:DEVICEID" or "signed_curve25519:AAAAHg".
type KeyID string

// NewKeyID joins an algorithm and a key name.
func NewKeyID(alg KeyAlgorithm, name string) KeyID {
	return KeyID(string(alg) + ":" + name)
}

// Parse splits the key ID into its algorithm and key name. The second
// return is empty when the ID has no separator.
func (id KeyID) Parse() (KeyAlgorithm, string) {
	if i := strings.IndexByte(string(id), ':'); i >= 0 {
		return KeyAlgorithm(id[:i]), string(id[i+1:])
	}
	return KeyAlgorithm(id), ""
}

// Event types used by the bridge surface.
const (
	EventEncrypted   EventType = "m.room.encrypted"
	EventMember      EventType = "m.room.member"
	EventEncryption  EventType = "m.room.encryption"
	EventPowerLevels EventType = "m.room.power_levels"
)
