package encryption

import (
	"context"
	"fmt"
	"sort"

	"mxbridge/internal/crypto"
	"mxbridge/internal/domain"
)

// establishResult records the outcome of establishment for one device, so
// a batch's skips can be reported without aborting it.
type establishResult struct {
	UserID   domain.UserID
	DeviceID domain.DeviceID
	Err      error
}

// createOutboundSessions guarantees that every device in users either
// already has a session or gets one, using at most one claim request for
// the whole batch.
//
// Steps:
//  1. Filter out devices whose session already exists (idempotence).
//  2. Batch the rest into a single claim request, omitting users with no
//     outstanding devices. An empty batch returns immediately: no network
//     call, no log output.
//  3. Verify each claimed key against the signing key from the caller's
//     identity mapping -- never one supplied by the response -- and skip
//     devices that fail.
//  4. Create and persist the session; only then is it available to the
//     encryptor.
func (m *Machine) createOutboundSessions(
	ctx context.Context,
	users map[domain.UserID]map[domain.DeviceID]domain.DeviceIdentity,
) error {
	request := make(map[domain.UserID]map[domain.DeviceID]domain.KeyAlgorithm)
	for userID, devices := range users {
		for deviceID, identity := range devices {
			has, err := m.store.HasSession(identity.IdentityKey)
			if err != nil {
				// Read failure is treated as "no session": establishing a
				// fresh session is always safe.
				m.log.Debugf("Session lookup for %s failed, assuming absent: %v",
					identity.IdentityKey, err)
				has = false
			}
			if has {
				continue
			}
			if request[userID] == nil {
				request[userID] = make(map[domain.DeviceID]domain.KeyAlgorithm)
			}
			request[userID][deviceID] = domain.AlgorithmSignedCurve25519
		}
	}
	if len(request) == 0 {
		return nil
	}

	resp, err := m.client.ClaimKeys(ctx, domain.OneTimeKeysClaimRequest{OneTimeKeys: request})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyClaimFailed, err)
	}

	var results []establishResult
	for userID, devices := range resp.OneTimeKeys {
		for deviceID, offered := range devices {
			identity, ok := users[userID][deviceID]
			if !ok {
				m.log.Warningf("Claim response contains unsolicited device %s of %s", deviceID, userID)
				continue
			}
			results = append(results, establishResult{
				UserID:   userID,
				DeviceID: deviceID,
				Err:      m.establishDevice(identity, offered),
			})
		}
	}
	for _, r := range results {
		if r.Err != nil {
			m.log.Warningf("Failed to establish session with %s of %s: %v", r.DeviceID, r.UserID, r.Err)
		}
	}
	return nil
}

// establishDevice verifies one device's claimed key and creates its
// session. Per-device failures are returned, never escalated to the
// batch.
func (m *Machine) establishDevice(
	identity domain.DeviceIdentity,
	offered map[domain.KeyID]domain.SignedOneTimeKey,
) error {
	oneTimeKey, ok := pickOneTimeKey(offered)
	if !ok {
		return ErrNoOneTimeKey
	}
	if !crypto.VerifySignatureJSON(oneTimeKey, identity.UserID, identity.DeviceID, identity.SigningKey) {
		return ErrSignatureInvalid
	}

	unlock := m.locks.Lock(identity.IdentityKey)
	defer unlock()

	// A concurrent caller may have won the race since the unlocked
	// existence check; creating a second session would orphan theirs.
	if has, err := m.store.HasSession(identity.IdentityKey); err == nil && has {
		return nil
	}

	session, err := m.account.NewOutboundSession(identity.IdentityKey, oneTimeKey.Key)
	if err != nil {
		return err
	}
	if err := m.store.AddSession(identity.IdentityKey, session); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionStoreFailure, err)
	}
	return nil
}

// pickOneTimeKey selects exactly one signed curve25519 key from a
// device's offered set: the lexicographically lowest key ID, so the
// choice is deterministic and reproducible. The rest of the response is
// discarded.
func pickOneTimeKey(
	offered map[domain.KeyID]domain.SignedOneTimeKey,
) (domain.SignedOneTimeKey, bool) {
	ids := make([]string, 0, len(offered))
	for id := range offered {
		if alg, _ := id.Parse(); alg != domain.AlgorithmSignedCurve25519 {
			continue
		}
		ids = append(ids, string(id))
	}
	if len(ids) == 0 {
		return domain.SignedOneTimeKey{}, false
	}
	sort.Strings(ids)
	return offered[domain.KeyID(ids[0])], true
}
