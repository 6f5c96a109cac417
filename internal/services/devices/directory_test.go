package devices

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"mxbridge/internal/domain"
	"mxbridge/internal/log"
	"mxbridge/internal/olm"
	"mxbridge/internal/store"
)

type fakeQueryClient struct {
	calls    int
	response domain.DeviceKeysQueryResponse
}

func (f *fakeQueryClient) QueryKeys(
	_ context.Context,
	_ domain.DeviceKeysQueryRequest,
) (domain.DeviceKeysQueryResponse, error) {
	f.calls++
	return f.response, nil
}

// signedDeviceKeys publishes account's keys as a well-formed, self-signed
// device key object.
func signedDeviceKeys(t *testing.T, account *olm.Account, user domain.UserID, device domain.DeviceID) domain.DeviceKeys {
	t.Helper()
	keys := domain.DeviceKeys{
		UserID:     user,
		DeviceID:   device,
		Algorithms: []domain.KeyAlgorithm{domain.AlgorithmOlmV1},
		Keys: map[domain.KeyID]string{
			domain.NewKeyID(domain.AlgorithmCurve25519, string(device)): string(account.IdentityKey()),
			domain.NewKeyID(domain.AlgorithmEd25519, string(device)):    string(account.SigningKey()),
		},
	}
	sig, err := account.SignJSON(keys)
	require.NoError(t, err)
	keys.Signatures = domain.Signatures{
		user: {domain.NewKeyID(domain.AlgorithmEd25519, string(device)): sig},
	}
	return keys
}

func TestDirectory_FetchVerifyAndCache(t *testing.T) {
	user := domain.UserID("@bob:example.org")
	account, err := olm.NewAccount()
	require.NoError(t, err)

	client := &fakeQueryClient{response: domain.DeviceKeysQueryResponse{
		DeviceKeys: map[domain.UserID]map[domain.DeviceID]domain.DeviceKeys{
			user: {"BOBDEV": signedDeviceKeys(t, account, user, "BOBDEV")},
		},
	}}
	dir := New(client, store.NewMemory(), log.NewDiscard())

	devices, err := dir.GetDevices(context.Background(), []domain.UserID{user})
	require.NoError(t, err)
	require.Len(t, devices[user], 1)
	require.Equal(t, account.IdentityKey(), devices[user]["BOBDEV"].IdentityKey)
	require.Equal(t, account.SigningKey(), devices[user]["BOBDEV"].SigningKey)
	require.Equal(t, 1, client.calls)

	// Second resolution is served from the cache.
	_, err = dir.GetDevices(context.Background(), []domain.UserID{user})
	require.NoError(t, err)
	require.Equal(t, 1, client.calls)
}

func TestDirectory_DropsForgedDeviceKeys(t *testing.T) {
	user := domain.UserID("@mallory:example.org")
	account, err := olm.NewAccount()
	require.NoError(t, err)
	other, err := olm.NewAccount()
	require.NoError(t, err)

	good := signedDeviceKeys(t, account, user, "GOOD")
	forged := signedDeviceKeys(t, account, user, "EVIL")
	// Swap in another device's identity key after signing.
	forged.Keys[domain.NewKeyID(domain.AlgorithmCurve25519, "EVIL")] = string(other.IdentityKey())

	client := &fakeQueryClient{response: domain.DeviceKeysQueryResponse{
		DeviceKeys: map[domain.UserID]map[domain.DeviceID]domain.DeviceKeys{
			user: {"GOOD": good, "EVIL": forged},
		},
	}}
	dir := New(client, store.NewMemory(), log.NewDiscard())

	devices, err := dir.GetDevices(context.Background(), []domain.UserID{user})
	require.NoError(t, err)
	require.Len(t, devices[user], 1)
	require.Contains(t, devices[user], domain.DeviceID("GOOD"))
}

func TestDirectory_DropsMismatchedIDs(t *testing.T) {
	user := domain.UserID("@bob:example.org")
	account, err := olm.NewAccount()
	require.NoError(t, err)

	// Signed for another user entirely.
	stolen := signedDeviceKeys(t, account, "@alice:example.org", "ALICEDEV")

	client := &fakeQueryClient{response: domain.DeviceKeysQueryResponse{
		DeviceKeys: map[domain.UserID]map[domain.DeviceID]domain.DeviceKeys{
			user: {"ALICEDEV": stolen},
		},
	}}
	dir := New(client, store.NewMemory(), log.NewDiscard())

	devices, err := dir.GetDevices(context.Background(), []domain.UserID{user})
	require.NoError(t, err)
	require.Empty(t, devices[user])
}

func TestDirectory_PinsIdentityKey(t *testing.T) {
	user := domain.UserID("@bob:example.org")
	account, err := olm.NewAccount()
	require.NoError(t, err)
	replacement, err := olm.NewAccount()
	require.NoError(t, err)

	mem := store.NewMemory()
	require.NoError(t, mem.PutDevices(user, map[domain.DeviceID]domain.DeviceIdentity{
		"BOBDEV": {
			UserID:      user,
			DeviceID:    "BOBDEV",
			IdentityKey: account.IdentityKey(),
			SigningKey:  account.SigningKey(),
		},
	}))

	dir := New(&fakeQueryClient{response: domain.DeviceKeysQueryResponse{
		DeviceKeys: map[domain.UserID]map[domain.DeviceID]domain.DeviceKeys{
			user: {"BOBDEV": signedDeviceKeys(t, replacement, user, "BOBDEV")},
		},
	}}, mem, log.NewDiscard())

	// Asking for an unknown device forces a refetch of the whole user;
	// the advertised key change for BOBDEV must not displace the pin.
	_, ok, err := dir.GetDevice(context.Background(), user, "OTHERDEV")
	require.NoError(t, err)
	require.False(t, ok)

	identity, ok, err := dir.GetDevice(context.Background(), user, "BOBDEV")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, account.IdentityKey(), identity.IdentityKey)
}
