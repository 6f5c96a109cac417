package olm

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"mxbridge/internal/crypto"
	domaintypes "mxbridge/internal/domain/types"
)

const (
	preKeyMessageType = 0
	normalMessageType = 1
)

// preKeyPart carries the handshake material a responder needs to derive
// the session root. Present until the peer's first reply proves the
// session established.
type preKeyPart struct {
	IdentityKey [32]byte `cbor:"identity_key"`
	Ephemeral   [32]byte `cbor:"ephemeral"`
	OneTimeKey  [32]byte `cbor:"one_time_key"`
}

type messagePayload struct {
	Header     ratchetHeader `cbor:"header"`
	Ciphertext []byte        `cbor:"ciphertext"`
	PreKey     *preKeyPart   `cbor:"prekey,omitempty"`
}

// Session is double-ratchet state bound to exactly one remote device,
// identified externally by that device's identity key. Encrypt and
// Decrypt mutate the ratchet; the caller must persist the session before
// letting anyone else use it, and must serialize all calls for the same
// device. Fields are exported only for pickling.
type Session struct {
	PeerIdentityKey [32]byte     `cbor:"peer_identity_key"`
	SenderIdentity  [32]byte     `cbor:"sender_identity"`
	EphemeralPub    [32]byte     `cbor:"ephemeral_pub"`
	OneTimeKeyPub   [32]byte     `cbor:"one_time_key_pub"`
	Established     bool         `cbor:"established"`
	Ratchet         RatchetState `cbor:"ratchet"`
}

// ID returns a stable identifier derived from the establishment material.
func (s *Session) ID() string {
	h := sha256.New()
	h.Write(s.SenderIdentity[:])
	h.Write(s.EphemeralPub[:])
	h.Write(s.OneTimeKeyPub[:])
	return crypto.B64(h.Sum(nil))
}

// Encrypt produces the next ratchet message for plaintext. Pre-key
// messages are emitted until a decrypt confirms the peer holds the
// session.
func (s *Session) Encrypt(plaintext []byte) (domaintypes.OlmCiphertext, error) {
	header, ct, err := s.Ratchet.encrypt(nil, plaintext)
	if err != nil {
		return domaintypes.OlmCiphertext{}, err
	}
	payload := messagePayload{Header: header, Ciphertext: ct}
	msgType := normalMessageType
	if !s.Established {
		msgType = preKeyMessageType
		payload.PreKey = &preKeyPart{
			IdentityKey: s.SenderIdentity,
			Ephemeral:   s.EphemeralPub,
			OneTimeKey:  s.OneTimeKeyPub,
		}
	}
	body, err := cbor.Marshal(payload)
	if err != nil {
		return domaintypes.OlmCiphertext{}, err
	}
	return domaintypes.OlmCiphertext{Type: msgType, Body: crypto.B64(body)}, nil
}

// Decrypt opens a ratchet message from the peer and marks the session
// established.
func (s *Session) Decrypt(msg domaintypes.OlmCiphertext) ([]byte, error) {
	payload, err := decodeMessage(msg.Body)
	if err != nil {
		return nil, err
	}
	plaintext, err := s.Ratchet.decrypt(nil, payload.Header, payload.Ciphertext)
	if err != nil {
		return nil, err
	}
	s.Established = true
	return plaintext, nil
}

// Pickle serializes the session for storage.
func (s *Session) Pickle() ([]byte, error) {
	return cbor.Marshal(s)
}

// UnpickleSession restores a session serialized by Pickle.
func UnpickleSession(data []byte) (*Session, error) {
	var s Session
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("olm: unpickle session: %w", err)
	}
	return &s, nil
}

func decodeMessage(body string) (messagePayload, error) {
	var payload messagePayload
	raw, err := crypto.UnB64(body)
	if err != nil {
		return payload, fmt.Errorf("olm: bad message body: %w", err)
	}
	if err := cbor.Unmarshal(raw, &payload); err != nil {
		return payload, fmt.Errorf("olm: bad message payload: %w", err)
	}
	return payload, nil
}
