package store

import (
	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"mxbridge/internal/domain"
)

// PutDevices replaces the cached device list of a user.
func (s *BoltStore) PutDevices(
	user domain.UserID,
	devices map[domain.DeviceID]domain.DeviceIdentity,
) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		parent := tx.Bucket(devicesBucket)
		if parent.Bucket([]byte(user)) != nil {
			if err := parent.DeleteBucket([]byte(user)); err != nil {
				return err
			}
		}
		bkt, err := parent.CreateBucket([]byte(user))
		if err != nil {
			return err
		}
		for id, identity := range devices {
			blob, err := cbor.Marshal(identity)
			if err != nil {
				return err
			}
			if err := bkt.Put([]byte(id), blob); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetDevice returns one cached device identity.
func (s *BoltStore) GetDevice(
	user domain.UserID,
	device domain.DeviceID,
) (domain.DeviceIdentity, bool, error) {
	var identity domain.DeviceIdentity
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(devicesBucket).Bucket([]byte(user))
		if bkt == nil {
			return nil
		}
		blob := bkt.Get([]byte(device))
		if blob == nil {
			return nil
		}
		found = true
		return cbor.Unmarshal(blob, &identity)
	})
	return identity, found, err
}

// GetDevices returns all cached device identities of a user; nil when the
// user was never cached.
func (s *BoltStore) GetDevices(
	user domain.UserID,
) (map[domain.DeviceID]domain.DeviceIdentity, error) {
	var out map[domain.DeviceID]domain.DeviceIdentity
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(devicesBucket).Bucket([]byte(user))
		if bkt == nil {
			return nil
		}
		out = make(map[domain.DeviceID]domain.DeviceIdentity)
		return bkt.ForEach(func(k, v []byte) error {
			var identity domain.DeviceIdentity
			if err := cbor.Unmarshal(v, &identity); err != nil {
				return err
			}
			out[domain.DeviceID(k)] = identity
			return nil
		})
	})
	return out, err
}
