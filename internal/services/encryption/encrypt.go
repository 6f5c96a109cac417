package encryption

import (
	"context"
	"fmt"

	"mxbridge/internal/crypto"
	"mxbridge/internal/domain"
)

// encryptOlmEvent encrypts one plaintext event for one established
// recipient device and persists the advanced ratchet state before
// returning.
//
// The recipient's signing key is pinned into the plaintext from the
// identity the caller verified at establishment time, so the ciphertext
// stays bound to that exact identity even if the directory changes
// afterwards.
func (m *Machine) encryptOlmEvent(
	_ context.Context,
	recipient domain.DeviceIdentity,
	eventType domain.EventType,
	content any,
) (domain.EncryptedOlmEventContent, error) {
	unlock := m.locks.Lock(recipient.IdentityKey)
	defer unlock()

	session, ok, err := m.store.GetSession(recipient.IdentityKey)
	if err != nil {
		m.log.Debugf("Session read for %s failed: %v", recipient.IdentityKey, err)
		return domain.EncryptedOlmEventContent{}, errNoSession
	}
	if !ok {
		return domain.EncryptedOlmEventContent{}, errNoSession
	}

	evt := domain.DecryptedOlmEvent{
		Sender:        m.userID,
		SenderDevice:  m.deviceID,
		Keys:          domain.OlmEventKeys{Ed25519: m.account.SigningKey()},
		Recipient:     recipient.UserID,
		RecipientKeys: domain.OlmEventKeys{Ed25519: recipient.SigningKey},
		Type:          eventType,
		Content:       content,
	}
	plaintext, err := crypto.CanonicalJSON(evt)
	if err != nil {
		return domain.EncryptedOlmEventContent{}, fmt.Errorf("serializing olm event: %w", err)
	}

	ciphertext, err := session.Encrypt(plaintext)
	if err != nil {
		return domain.EncryptedOlmEventContent{}, fmt.Errorf("encrypting olm event: %w", err)
	}

	// The in-memory ratchet has advanced; the write must land before the
	// session may be used again. On failure the session is stale in
	// storage and delivery to this device has failed for good -- a retry
	// would double-advance the ratchet.
	if err := m.store.UpdateSession(recipient.IdentityKey, session); err != nil {
		return domain.EncryptedOlmEventContent{}, fmt.Errorf("%w: %v", ErrSessionStoreFailure, err)
	}

	return domain.EncryptedOlmEventContent{
		Algorithm: domain.AlgorithmOlmV1,
		SenderKey: m.account.IdentityKey(),
		Ciphertext: map[domain.Curve25519]domain.OlmCiphertext{
			recipient.IdentityKey: ciphertext,
		},
	}, nil
}
