package domain

import (
	interfaces "mxbridge/internal/domain/interfaces"
	types "mxbridge/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	UserID     = types.UserID
	DeviceID   = types.DeviceID
	RoomID     = types.RoomID
	RoomAlias  = types.RoomAlias
	EventType  = types.EventType
	KeyID      = types.KeyID
	Curve25519 = types.Curve25519
	Ed25519    = types.Ed25519

	KeyAlgorithm   = types.KeyAlgorithm
	Signatures     = types.Signatures
	DeviceIdentity = types.DeviceIdentity
	DeviceKeys     = types.DeviceKeys

	OneTimeKeysClaimRequest  = types.OneTimeKeysClaimRequest
	OneTimeKeysClaimResponse = types.OneTimeKeysClaimResponse
	SignedOneTimeKey         = types.SignedOneTimeKey
	DeviceKeysQueryRequest   = types.DeviceKeysQueryRequest
	DeviceKeysQueryResponse  = types.DeviceKeysQueryResponse
	KeysUploadRequest        = types.KeysUploadRequest
	KeysUploadResponse       = types.KeysUploadResponse

	OlmEventKeys             = types.OlmEventKeys
	DecryptedOlmEvent        = types.DecryptedOlmEvent
	OlmCiphertext            = types.OlmCiphertext
	EncryptedOlmEventContent = types.EncryptedOlmEventContent
	Event                    = types.Event

	Membership             = types.Membership
	Member                 = types.Member
	EncryptionEventContent = types.EncryptionEventContent
	PowerLevels            = types.PowerLevels
)

// Well-known algorithm, membership and event type values.
const (
	AlgorithmEd25519          = types.AlgorithmEd25519
	AlgorithmCurve25519       = types.AlgorithmCurve25519
	AlgorithmSignedCurve25519 = types.AlgorithmSignedCurve25519
	AlgorithmOlmV1            = types.AlgorithmOlmV1

	MembershipJoin   = types.MembershipJoin
	MembershipLeave  = types.MembershipLeave
	MembershipInvite = types.MembershipInvite
	MembershipBan    = types.MembershipBan
	MembershipKnock  = types.MembershipKnock

	EventEncrypted   = types.EventEncrypted
	EventMember      = types.EventMember
	EventEncryption  = types.EventEncryption
	EventPowerLevels = types.EventPowerLevels
)

// NewKeyID builds a key identifier of the form "<algorithm>:<name>".
var NewKeyID = types.NewKeyID

// Interface aliases expose domain contracts from the interfaces subpackage.
type (
	CryptoStore     = interfaces.CryptoStore
	DeviceStore     = interfaces.DeviceStore
	StateStore      = interfaces.StateStore
	KeyClaimClient  = interfaces.KeyClaimClient
	KeyQueryClient  = interfaces.KeyQueryClient
	ToDeviceSender  = interfaces.ToDeviceSender
	Encryptor       = interfaces.Encryptor
	DeviceDirectory = interfaces.DeviceDirectory
)
