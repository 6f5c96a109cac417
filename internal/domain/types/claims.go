package types

// OneTimeKeysClaimRequest asks the homeserver to consume one one-time key
// per listed device. Users with no outstanding devices must be omitted
// entirely, never sent as empty maps.
type OneTimeKeysClaimRequest struct {
	OneTimeKeys map[UserID]map[DeviceID]KeyAlgorithm `json:"one_time_keys"`
	TimeoutMS   int64                                `json:"timeout,omitempty"`
}

// SignedOneTimeKey is one claimed key together with the publishing
// device's signature over the object.
type SignedOneTimeKey struct {
	Key        Curve25519 `json:"key"`
	Signatures Signatures `json:"signatures"`
	Fallback   bool       `json:"fallback,omitempty"`
}

// OneTimeKeysClaimResponse carries the claimed keys per user and device. A
// device that had no claimable key is simply absent. Failures maps
// unreachable remote server names to opaque error payloads.
type OneTimeKeysClaimResponse struct {
	OneTimeKeys map[UserID]map[DeviceID]map[KeyID]SignedOneTimeKey `json:"one_time_keys"`
	Failures    map[string]any                                     `json:"failures,omitempty"`
}

// KeysUploadRequest publishes the local device keys and a batch of signed
// one-time keys. Either section may be omitted.
type KeysUploadRequest struct {
	DeviceKeys  *DeviceKeys                `json:"device_keys,omitempty"`
	OneTimeKeys map[KeyID]SignedOneTimeKey `json:"one_time_keys,omitempty"`
}

// KeysUploadResponse reports how many keys of each algorithm the server
// now holds for the device.
type KeysUploadResponse struct {
	OneTimeKeyCounts map[KeyAlgorithm]int `json:"one_time_key_counts"`
}

// DeviceKeysQueryRequest asks for the device key objects of the listed
// users. An empty device list means all devices of that user.
type DeviceKeysQueryRequest struct {
	DeviceKeys map[UserID][]DeviceID `json:"device_keys"`
	TimeoutMS  int64                 `json:"timeout,omitempty"`
}

// DeviceKeysQueryResponse is the homeserver's view of the queried users'
// devices.
type DeviceKeysQueryResponse struct {
	DeviceKeys map[UserID]map[DeviceID]DeviceKeys `json:"device_keys"`
	Failures   map[string]any                     `json:"failures,omitempty"`
}
