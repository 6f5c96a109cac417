package encryption

import "errors"

var (
	// ErrKeyClaimFailed wraps a network or remote error from the key
	// claim call. Fatal to the whole batch; nothing was persisted and the
	// caller may retry the entire EncryptFor call.
	ErrKeyClaimFailed = errors.New("one-time key claim failed")

	// ErrSessionStoreFailure wraps a session store write failure after
	// the in-memory ratchet already advanced. Never retried transparently:
	// the caller must treat delivery to that device as failed and must
	// not assume the local and remote ratchets remain aligned.
	ErrSessionStoreFailure = errors.New("session store failure")

	// ErrSignatureInvalid marks a claimed one-time key that failed
	// verification against the device's trusted signing key.
	ErrSignatureInvalid = errors.New("invalid one-time key signature")

	// ErrNoOneTimeKey marks a device whose claim response offered no
	// usable key (key exhaustion).
	ErrNoOneTimeKey = errors.New("no usable one-time key offered")

	// errNoSession marks a device without an established session at
	// encryption time; the device is skipped, not failed.
	errNoSession = errors.New("no session with device")
)
