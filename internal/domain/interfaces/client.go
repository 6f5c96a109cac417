package interfaces

import (
	"context"

	domaintypes "mxbridge/internal/domain/types"
)

// KeyClaimClient issues the batched one-time-key claim against the
// homeserver. The call is the single network suspension point of outbound
// session establishment; transport and auth details are the client's
// concern.
type KeyClaimClient interface {
	ClaimKeys(
		ctx context.Context,
		req domaintypes.OneTimeKeysClaimRequest,
	) (domaintypes.OneTimeKeysClaimResponse, error)
}

// KeyQueryClient fetches published device key objects for a set of users.
type KeyQueryClient interface {
	QueryKeys(
		ctx context.Context,
		req domaintypes.DeviceKeysQueryRequest,
	) (domaintypes.DeviceKeysQueryResponse, error)
}

// ToDeviceSender delivers per-device event content produced by the
// encryption machine.
type ToDeviceSender interface {
	SendToDevice(
		ctx context.Context,
		eventType domaintypes.EventType,
		messages map[domaintypes.UserID]map[domaintypes.DeviceID]any,
	) error
}
