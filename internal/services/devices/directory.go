package devices

import (
	"context"

	logging "gopkg.in/op/go-logging.v1"

	"mxbridge/internal/crypto"
	"mxbridge/internal/domain"
	"mxbridge/internal/log"
)

// Directory resolves device identities through the homeserver key
// directory, caching verified results in the device store.
type Directory struct {
	client domain.KeyQueryClient
	store  domain.DeviceStore
	log    *logging.Logger
}

// New constructs a Directory backed by client and store.
func New(
	client domain.KeyQueryClient,
	store domain.DeviceStore,
	logBackend *log.Backend,
) *Directory {
	return &Directory{
		client: client,
		store:  store,
		log:    logBackend.GetLogger("devices"),
	}
}

// GetDevices returns the identities of every listed user's devices,
// querying the homeserver for users with no cached entry.
func (d *Directory) GetDevices(
	ctx context.Context,
	users []domain.UserID,
) (map[domain.UserID]map[domain.DeviceID]domain.DeviceIdentity, error) {
	out := make(map[domain.UserID]map[domain.DeviceID]domain.DeviceIdentity, len(users))

	var missing []domain.UserID
	for _, user := range users {
		cached, err := d.store.GetDevices(user)
		if err != nil {
			return nil, err
		}
		if len(cached) > 0 {
			out[user] = cached
			continue
		}
		missing = append(missing, user)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := d.fetch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for user, devices := range fetched {
		out[user] = devices
	}
	return out, nil
}

// GetDevice returns one device identity, querying the homeserver when the
// user has no cached entry at all.
func (d *Directory) GetDevice(
	ctx context.Context,
	user domain.UserID,
	device domain.DeviceID,
) (domain.DeviceIdentity, bool, error) {
	identity, ok, err := d.store.GetDevice(user, device)
	if err != nil || ok {
		return identity, ok, err
	}
	fetched, err := d.fetch(ctx, []domain.UserID{user})
	if err != nil {
		return domain.DeviceIdentity{}, false, err
	}
	identity, ok = fetched[user][device]
	return identity, ok, nil
}

// fetch queries the directory for the listed users, validates every
// returned device key object and persists the accepted identities.
func (d *Directory) fetch(
	ctx context.Context,
	users []domain.UserID,
) (map[domain.UserID]map[domain.DeviceID]domain.DeviceIdentity, error) {
	request := domain.DeviceKeysQueryRequest{
		DeviceKeys: make(map[domain.UserID][]domain.DeviceID, len(users)),
	}
	for _, user := range users {
		request.DeviceKeys[user] = []domain.DeviceID{}
	}

	response, err := d.client.QueryKeys(ctx, request)
	if err != nil {
		return nil, err
	}

	out := make(map[domain.UserID]map[domain.DeviceID]domain.DeviceIdentity, len(response.DeviceKeys))
	for user, deviceKeys := range response.DeviceKeys {
		accepted := make(map[domain.DeviceID]domain.DeviceIdentity, len(deviceKeys))
		for deviceID, keys := range deviceKeys {
			identity, ok := d.validate(user, deviceID, keys)
			if !ok {
				continue
			}
			accepted[deviceID] = identity
		}
		if err := d.store.PutDevices(user, accepted); err != nil {
			return nil, err
		}
		out[user] = accepted
	}
	return out, nil
}

// validate checks one device key object against its own signing key and
// against the identity key pinned by an earlier query, if any.
func (d *Directory) validate(
	user domain.UserID,
	deviceID domain.DeviceID,
	keys domain.DeviceKeys,
) (domain.DeviceIdentity, bool) {
	if keys.UserID != user || keys.DeviceID != deviceID {
		d.log.Warningf("Mismatched IDs in device keys for %s/%s", user, deviceID)
		return domain.DeviceIdentity{}, false
	}
	identityKey := keys.IdentityKey()
	signingKey := keys.SigningKey()
	if identityKey == "" || signingKey == "" {
		d.log.Warningf("Device keys for %s/%s missing key material", user, deviceID)
		return domain.DeviceIdentity{}, false
	}
	if !crypto.VerifySignatureJSON(keys, user, deviceID, signingKey) {
		d.log.Warningf("Invalid self-signature on device keys for %s/%s", user, deviceID)
		return domain.DeviceIdentity{}, false
	}

	if prev, ok, err := d.store.GetDevice(user, deviceID); err == nil && ok {
		if prev.IdentityKey != identityKey {
			d.log.Warningf("Identity key change for %s/%s rejected, keeping pinned key",
				user, deviceID)
			return prev, true
		}
	}

	return domain.DeviceIdentity{
		UserID:      user,
		DeviceID:    deviceID,
		IdentityKey: identityKey,
		SigningKey:  signingKey,
		DisplayName: keys.Unsigned.DeviceDisplayName,
	}, true
}

// Compile-time assertion that Directory implements domain.DeviceDirectory.
var _ domain.DeviceDirectory = (*Directory)(nil)
