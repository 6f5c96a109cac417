package types

import "encoding/json"

// OlmEventKeys carries the signing key asserted inside an Olm plaintext.
type OlmEventKeys struct {
	Ed25519 Ed25519 `json:"ed25519"`
}

// DecryptedOlmEvent is the plaintext envelope encrypted for exactly one
// device. Sender and recipient key material is pinned into the plaintext at
// encryption time so the peer can cross-check it after decryption,
// defending against key substitution between establishment and use.
type DecryptedOlmEvent struct {
	Sender        UserID       `json:"sender"`
	SenderDevice  DeviceID     `json:"sender_device"`
	Keys          OlmEventKeys `json:"keys"`
	Recipient     UserID       `json:"recipient"`
	RecipientKeys OlmEventKeys `json:"recipient_keys"`
	Type          EventType    `json:"type"`
	Content       any          `json:"content"`
}

// OlmCiphertext is one ratchet message: Type 0 is a pre-key message that
// can bootstrap the receiving side, Type 1 a normal message.
type OlmCiphertext struct {
	Type int    `json:"type"`
	Body string `json:"body"`
}

// EncryptedOlmEventContent is the wire envelope for one recipient device.
// Ciphertext holds exactly one entry, keyed by that device's identity key;
// multi-device fan-out produces one envelope per device.
type EncryptedOlmEventContent struct {
	Algorithm  KeyAlgorithm                 `json:"algorithm"`
	SenderKey  Curve25519                   `json:"sender_key"`
	Ciphertext map[Curve25519]OlmCiphertext `json:"ciphertext"`
}

// Event is a Matrix event as delivered to the appservice transaction
// endpoint. Content stays raw so handlers can decode it into the shape
// they expect.
type Event struct {
	ID        string          `json:"event_id"`
	Type      EventType       `json:"type"`
	RoomID    RoomID          `json:"room_id"`
	Sender    UserID          `json:"sender"`
	StateKey  *string         `json:"state_key,omitempty"`
	Timestamp int64           `json:"origin_server_ts"`
	Content   json.RawMessage `json:"content"`
}

// IsState reports whether the event is a state event.
func (e *Event) IsState() bool { return e.StateKey != nil }
