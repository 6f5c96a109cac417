package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"mxbridge/internal/domain"
	"mxbridge/internal/olm"
)

func newTestBolt(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBolt(filepath.Join(t.TempDir(), "bridge.db"), "test-pickle-key")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBolt_AccountRoundTrip(t *testing.T) {
	s := newTestBolt(t)

	_, ok, err := s.GetAccount()
	require.NoError(t, err)
	require.False(t, ok)

	account, err := olm.NewAccount()
	require.NoError(t, err)
	require.NoError(t, s.PutAccount(account))

	got, ok, err := s.GetAccount()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, account.IdentityKey(), got.IdentityKey())
	require.Equal(t, account.SigningKey(), got.SigningKey())
}

func TestBolt_AccountSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.db")

	s, err := NewBolt(path, "test-pickle-key")
	require.NoError(t, err)
	account, err := olm.NewAccount()
	require.NoError(t, err)
	require.NoError(t, s.PutAccount(account))
	require.NoError(t, s.Close())

	reopened, err := NewBolt(path, "test-pickle-key")
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.GetAccount()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, account.IdentityKey(), got.IdentityKey())
}

func TestBolt_WrongPickleKeyFailsOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.db")

	s, err := NewBolt(path, "correct-key")
	require.NoError(t, err)
	account, err := olm.NewAccount()
	require.NoError(t, err)
	require.NoError(t, s.PutAccount(account))
	require.NoError(t, s.Close())

	reopened, err := NewBolt(path, "wrong-key")
	require.NoError(t, err)
	defer reopened.Close()

	_, _, err = reopened.GetAccount()
	require.Error(t, err)
}

func TestBolt_SessionRoundTrip(t *testing.T) {
	s := newTestBolt(t)

	alice, err := olm.NewAccount()
	require.NoError(t, err)
	bob, err := olm.NewAccount()
	require.NoError(t, err)
	require.NoError(t, bob.GenerateOneTimeKeys(1))

	otks, err := bob.SignedOneTimeKeys("@bob:example.org", "BOBDEV")
	require.NoError(t, err)
	var otk domain.Curve25519
	for _, signed := range otks {
		otk = signed.Key
	}

	peer := bob.IdentityKey()
	sess, err := alice.NewOutboundSession(peer, otk)
	require.NoError(t, err)
	ok, err := s.HasSession(peer)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.AddSession(peer, sess))

	ok, err = s.HasSession(peer)
	require.NoError(t, err)
	require.True(t, ok)

	got, ok, err := s.GetSession(peer)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sess.ID(), got.ID())

	// A ratchet step must survive UpdateSession.
	_, err = got.Encrypt([]byte(`{"hello":"world"}`))
	require.NoError(t, err)
	require.NoError(t, s.UpdateSession(peer, got))

	again, ok, err := s.GetSession(peer)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, got.Ratchet.SendCount, again.Ratchet.SendCount)
}

func TestBolt_Devices(t *testing.T) {
	s := newTestBolt(t)

	user := domain.UserID("@carol:example.org")
	devices := map[domain.DeviceID]domain.DeviceIdentity{
		"DEVA": {UserID: user, DeviceID: "DEVA", IdentityKey: "ida", SigningKey: "eda"},
		"DEVB": {UserID: user, DeviceID: "DEVB", IdentityKey: "idb", SigningKey: "edb"},
	}
	require.NoError(t, s.PutDevices(user, devices))

	dev, ok, err := s.GetDevice(user, "DEVA")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.Curve25519("ida"), dev.IdentityKey)

	all, err := s.GetDevices(user)
	require.NoError(t, err)
	require.Len(t, all, 2)

	// A fresh PutDevices replaces the whole list.
	require.NoError(t, s.PutDevices(user, map[domain.DeviceID]domain.DeviceIdentity{
		"DEVC": {UserID: user, DeviceID: "DEVC", IdentityKey: "idc", SigningKey: "edc"},
	}))
	all, err = s.GetDevices(user)
	require.NoError(t, err)
	require.Len(t, all, 1)
	_, ok, err = s.GetDevice(user, "DEVA")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBolt_Members(t *testing.T) {
	s := newTestBolt(t)
	room := domain.RoomID("!room:example.org")
	user := domain.UserID("@dan:example.org")

	_, ok, err := s.GetMember(room, user)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SetMember(room, user, domain.Member{
		Membership:  domain.MembershipJoin,
		Displayname: "Dan",
	}))

	// Updating just the membership keeps the old profile fields.
	require.NoError(t, s.SetMembership(room, user, domain.MembershipLeave))

	member, ok, err := s.GetMember(room, user)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.MembershipLeave, member.Membership)
	require.Equal(t, "Dan", member.Displayname)

	users, err := s.GetMembers(room)
	require.NoError(t, err)
	require.Equal(t, []domain.UserID{user}, users)
}

func TestBolt_SetMembersMarksFullList(t *testing.T) {
	s := newTestBolt(t)
	room := domain.RoomID("!room:example.org")

	full, err := s.HasFullMemberList(room)
	require.NoError(t, err)
	require.False(t, full)

	require.NoError(t, s.SetMembers(room, map[domain.UserID]domain.Member{
		"@a:example.org": {Membership: domain.MembershipJoin},
		"@b:example.org": {Membership: domain.MembershipInvite},
	}))

	full, err = s.HasFullMemberList(room)
	require.NoError(t, err)
	require.True(t, full)

	users, err := s.GetMembers(room)
	require.NoError(t, err)
	require.Len(t, users, 2)
}

func TestBolt_RoomStateRoundTrip(t *testing.T) {
	s := newTestBolt(t)
	room := domain.RoomID("!enc:example.org")

	encrypted, err := s.IsEncrypted(room)
	require.NoError(t, err)
	require.False(t, encrypted)

	require.NoError(t, s.SetEncryption(room, domain.EncryptionEventContent{
		Algorithm: domain.AlgorithmOlmV1,
	}))
	encrypted, err = s.IsEncrypted(room)
	require.NoError(t, err)
	require.True(t, encrypted)

	content, ok, err := s.GetEncryption(room)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.AlgorithmOlmV1, content.Algorithm)

	require.NoError(t, s.SetPowerLevels(room, domain.PowerLevels{
		Users:        map[domain.UserID]int{"@admin:example.org": 100},
		UsersDefault: 0,
	}))
	levels, ok, err := s.GetPowerLevels(room)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 100, levels.GetUserLevel("@admin:example.org"))
	require.Equal(t, 0, levels.GetUserLevel("@lurker:example.org"))
}

func TestBolt_RoomStateSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.db")
	room := domain.RoomID("!enc:example.org")

	s, err := NewBolt(path, "test-pickle-key")
	require.NoError(t, err)
	require.NoError(t, s.SetEncryption(room, domain.EncryptionEventContent{Algorithm: domain.AlgorithmOlmV1}))
	require.NoError(t, s.Close())

	reopened, err := NewBolt(path, "test-pickle-key")
	require.NoError(t, err)
	defer reopened.Close()

	encrypted, err := reopened.IsEncrypted(room)
	require.NoError(t, err)
	require.True(t, encrypted)
}
