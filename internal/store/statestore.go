package store

import (
	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"mxbridge/internal/domain"
)

// cachedRoom is the in-memory image of one room's non-member state,
// filled on first read and kept in step with writes.
type cachedRoom struct {
	state roomState
}

// roomState is the persisted non-member state of one room.
type roomState struct {
	HasFullMemberList bool                           `cbor:"full_member_list"`
	Encryption        *domain.EncryptionEventContent `cbor:"encryption,omitempty"`
	PowerLevels       *domain.PowerLevels            `cbor:"power_levels,omitempty"`
}

// getRoomState reads through the cache.
func (s *BoltStore) getRoomState(room domain.RoomID) (roomState, error) {
	s.cacheMu.RLock()
	cached, ok := s.roomCache[room]
	s.cacheMu.RUnlock()
	if ok {
		return cached.state, nil
	}

	var state roomState
	err := s.db.View(func(tx *bolt.Tx) error {
		blob := tx.Bucket(roomsBucket).Get([]byte(room))
		if blob == nil {
			return nil
		}
		return cbor.Unmarshal(blob, &state)
	})
	if err != nil {
		return roomState{}, err
	}

	s.cacheMu.Lock()
	s.roomCache[room] = &cachedRoom{state: state}
	s.cacheMu.Unlock()
	return state, nil
}

// mutateRoomState applies edit to the room's state, persists the result,
// and refreshes the cache.
func (s *BoltStore) mutateRoomState(room domain.RoomID, edit func(*roomState)) error {
	state, err := s.getRoomState(room)
	if err != nil {
		return err
	}
	edit(&state)
	blob, err := cbor.Marshal(state)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(roomsBucket).Put([]byte(room), blob)
	})
	if err != nil {
		return err
	}
	s.cacheMu.Lock()
	s.roomCache[room] = &cachedRoom{state: state}
	s.cacheMu.Unlock()
	return nil
}

// ---------- Members ----------

// GetMember returns the cached membership profile of user in room.
func (s *BoltStore) GetMember(room domain.RoomID, user domain.UserID) (domain.Member, bool, error) {
	var member domain.Member
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(membersBucket).Bucket([]byte(room))
		if bkt == nil {
			return nil
		}
		blob := bkt.Get([]byte(user))
		if blob == nil {
			return nil
		}
		found = true
		return cbor.Unmarshal(blob, &member)
	})
	return member, found, err
}

// SetMember stores the membership profile of user in room. Empty profile
// fields keep their previously stored values.
func (s *BoltStore) SetMember(room domain.RoomID, user domain.UserID, member domain.Member) error {
	if prev, ok, err := s.GetMember(room, user); err == nil && ok {
		if member.Displayname == "" {
			member.Displayname = prev.Displayname
		}
		if member.AvatarURL == "" {
			member.AvatarURL = prev.AvatarURL
		}
	}
	blob, err := cbor.Marshal(member)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.Bucket(membersBucket).CreateBucketIfNotExists([]byte(room))
		if err != nil {
			return err
		}
		return bkt.Put([]byte(user), blob)
	})
}

// SetMembership updates just the membership state of user in room.
func (s *BoltStore) SetMembership(room domain.RoomID, user domain.UserID, membership domain.Membership) error {
	return s.SetMember(room, user, domain.Member{Membership: membership})
}

// GetMembers lists the users with a cached profile in room.
func (s *BoltStore) GetMembers(room domain.RoomID) ([]domain.UserID, error) {
	var out []domain.UserID
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(membersBucket).Bucket([]byte(room))
		if bkt == nil {
			return nil
		}
		return bkt.ForEach(func(k, _ []byte) error {
			out = append(out, domain.UserID(k))
			return nil
		})
	})
	return out, err
}

// SetMembers replaces the full member list of room and marks the list
// complete.
func (s *BoltStore) SetMembers(room domain.RoomID, members map[domain.UserID]domain.Member) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		parent := tx.Bucket(membersBucket)
		if parent.Bucket([]byte(room)) != nil {
			if err := parent.DeleteBucket([]byte(room)); err != nil {
				return err
			}
		}
		bkt, err := parent.CreateBucket([]byte(room))
		if err != nil {
			return err
		}
		for user, member := range members {
			blob, err := cbor.Marshal(member)
			if err != nil {
				return err
			}
			if err := bkt.Put([]byte(user), blob); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.mutateRoomState(room, func(st *roomState) { st.HasFullMemberList = true })
}

// HasFullMemberList reports whether SetMembers ever stored room's
// complete list.
func (s *BoltStore) HasFullMemberList(room domain.RoomID) (bool, error) {
	state, err := s.getRoomState(room)
	return state.HasFullMemberList, err
}

// ---------- Encryption state ----------

// IsEncrypted reports whether room has encryption enabled.
func (s *BoltStore) IsEncrypted(room domain.RoomID) (bool, error) {
	state, err := s.getRoomState(room)
	return state.Encryption != nil, err
}

// GetEncryption returns room's cached m.room.encryption content.
func (s *BoltStore) GetEncryption(room domain.RoomID) (domain.EncryptionEventContent, bool, error) {
	state, err := s.getRoomState(room)
	if err != nil || state.Encryption == nil {
		return domain.EncryptionEventContent{}, false, err
	}
	return *state.Encryption, true, nil
}

// SetEncryption caches room's m.room.encryption content.
func (s *BoltStore) SetEncryption(room domain.RoomID, content domain.EncryptionEventContent) error {
	return s.mutateRoomState(room, func(st *roomState) { st.Encryption = &content })
}

// ---------- Power levels ----------

// GetPowerLevels returns room's cached power levels.
func (s *BoltStore) GetPowerLevels(room domain.RoomID) (domain.PowerLevels, bool, error) {
	state, err := s.getRoomState(room)
	if err != nil || state.PowerLevels == nil {
		return domain.PowerLevels{}, false, err
	}
	return *state.PowerLevels, true, nil
}

// SetPowerLevels caches room's power levels.
func (s *BoltStore) SetPowerLevels(room domain.RoomID, content domain.PowerLevels) error {
	return s.mutateRoomState(room, func(st *roomState) { st.PowerLevels = &content })
}
