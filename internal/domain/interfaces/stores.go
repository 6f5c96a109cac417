package interfaces

import (
	domaintypes "mxbridge/internal/domain/types"
	"mxbridge/internal/olm"
)

// CryptoStore persists the local account and the ratchet sessions keyed by
// the remote device's identity key. A session must be persisted before it
// is considered available for reuse by any other caller.
type CryptoStore interface {
	PutAccount(account *olm.Account) error
	GetAccount() (*olm.Account, bool, error)

	HasSession(key domaintypes.Curve25519) (bool, error)
	GetSession(key domaintypes.Curve25519) (*olm.Session, bool, error)
	AddSession(key domaintypes.Curve25519, session *olm.Session) error
	UpdateSession(key domaintypes.Curve25519, session *olm.Session) error
}

// DeviceStore caches remote device identities fetched from the directory.
type DeviceStore interface {
	PutDevices(user domaintypes.UserID, devices map[domaintypes.DeviceID]domaintypes.DeviceIdentity) error
	GetDevice(user domaintypes.UserID, device domaintypes.DeviceID) (domaintypes.DeviceIdentity, bool, error)
	GetDevices(user domaintypes.UserID) (map[domaintypes.DeviceID]domaintypes.DeviceIdentity, error)
}

// StateStore is the read-through room-state cache consulted by the bridge
// surface.
type StateStore interface {
	GetMember(room domaintypes.RoomID, user domaintypes.UserID) (domaintypes.Member, bool, error)
	SetMember(room domaintypes.RoomID, user domaintypes.UserID, member domaintypes.Member) error
	SetMembership(room domaintypes.RoomID, user domaintypes.UserID, membership domaintypes.Membership) error
	GetMembers(room domaintypes.RoomID) ([]domaintypes.UserID, error)
	SetMembers(room domaintypes.RoomID, members map[domaintypes.UserID]domaintypes.Member) error
	HasFullMemberList(room domaintypes.RoomID) (bool, error)

	IsEncrypted(room domaintypes.RoomID) (bool, error)
	GetEncryption(room domaintypes.RoomID) (domaintypes.EncryptionEventContent, bool, error)
	SetEncryption(room domaintypes.RoomID, content domaintypes.EncryptionEventContent) error

	GetPowerLevels(room domaintypes.RoomID) (domaintypes.PowerLevels, bool, error)
	SetPowerLevels(room domaintypes.RoomID, content domaintypes.PowerLevels) error
}
