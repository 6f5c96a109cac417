package interfaces

import (
	"context"

	domaintypes "mxbridge/internal/domain/types"
)

// Encryptor is the public entry point of the outbound encryption machine:
// given a recipient device set and a plaintext event it returns one wire
// envelope per device that could be encrypted to. Devices that failed
// establishment are silently absent from the result; callers treat a
// missing device as undeliverable, not as an error for the call.
type Encryptor interface {
	EncryptFor(
		ctx context.Context,
		recipients map[domaintypes.UserID]map[domaintypes.DeviceID]domaintypes.DeviceIdentity,
		eventType domaintypes.EventType,
		content any,
	) (map[domaintypes.Curve25519]domaintypes.EncryptedOlmEventContent, error)
}

// DeviceDirectory resolves and caches the device identities used as trust
// anchors by the encryption machine. It never mutates identities it has
// already handed out.
type DeviceDirectory interface {
	GetDevices(
		ctx context.Context,
		users []domaintypes.UserID,
	) (map[domaintypes.UserID]map[domaintypes.DeviceID]domaintypes.DeviceIdentity, error)
	GetDevice(
		ctx context.Context,
		user domaintypes.UserID,
		device domaintypes.DeviceID,
	) (domaintypes.DeviceIdentity, bool, error)
}
