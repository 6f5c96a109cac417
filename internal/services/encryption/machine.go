package encryption

import (
	"context"
	"errors"

	logging "gopkg.in/op/go-logging.v1"

	"mxbridge/internal/domain"
	"mxbridge/internal/log"
	"mxbridge/internal/olm"
)

// Machine is the outbound encryption orchestrator. One instance serves
// one logical device; the account is read-only after construction and the
// session store carries all mutable state.
type Machine struct {
	account *olm.Account
	client  domain.KeyClaimClient
	store   domain.CryptoStore

	userID   domain.UserID
	deviceID domain.DeviceID

	locks *deviceLocks
	log   *logging.Logger
}

// New constructs a Machine for the local account.
func New(
	account *olm.Account,
	userID domain.UserID,
	deviceID domain.DeviceID,
	client domain.KeyClaimClient,
	store domain.CryptoStore,
	logBackend *log.Backend,
) *Machine {
	return &Machine{
		account:  account,
		client:   client,
		store:    store,
		userID:   userID,
		deviceID: deviceID,
		locks:    newDeviceLocks(),
		log:      logBackend.GetLogger("encryption"),
	}
}

// EncryptFor ensures every recipient device has a ratchet session, then
// encrypts the event once per device, returning one wire envelope per
// device keyed by its identity key.
//
// Devices that could not be established -- forged key signature, key
// exhaustion, omission from the claim response -- are silently absent
// from the result; callers must treat a missing device as undeliverable
// to that device, not as an error for the call. An empty recipient set
// performs no network call and returns an empty map.
func (m *Machine) EncryptFor(
	ctx context.Context,
	recipients map[domain.UserID]map[domain.DeviceID]domain.DeviceIdentity,
	eventType domain.EventType,
	content any,
) (map[domain.Curve25519]domain.EncryptedOlmEventContent, error) {
	out := make(map[domain.Curve25519]domain.EncryptedOlmEventContent)
	if len(recipients) == 0 {
		return out, nil
	}

	if err := m.createOutboundSessions(ctx, recipients); err != nil {
		return nil, err
	}

	for _, devices := range recipients {
		for _, identity := range devices {
			envelope, err := m.encryptOlmEvent(ctx, identity, eventType, content)
			switch {
			case errors.Is(err, errNoSession):
				m.log.Debugf("Skipping %s/%s: no session", identity.UserID, identity.DeviceID)
				continue
			case err != nil:
				return nil, err
			}
			out[identity.IdentityKey] = envelope
		}
	}
	return out, nil
}

// Compile-time assertion that Machine implements domain.Encryptor.
var _ domain.Encryptor = (*Machine)(nil)
