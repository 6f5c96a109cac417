package store

import (
	"sync"

	"mxbridge/internal/domain"
	"mxbridge/internal/olm"
)

// MemoryStore is an in-process CryptoStore and DeviceStore. It backs tests
// and throwaway runs where nothing should touch the disk.
type MemoryStore struct {
	mu       sync.Mutex
	account  *olm.Account
	sessions map[domain.Curve25519]*olm.Session
	devices  map[domain.UserID]map[domain.DeviceID]domain.DeviceIdentity
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[domain.Curve25519]*olm.Session),
		devices:  make(map[domain.UserID]map[domain.DeviceID]domain.DeviceIdentity),
	}
}

func (s *MemoryStore) PutAccount(account *olm.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = account
	return nil
}

func (s *MemoryStore) GetAccount() (*olm.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account, s.account != nil, nil
}

func (s *MemoryStore) HasSession(key domain.Curve25519) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[key]
	return ok, nil
}

func (s *MemoryStore) GetSession(key domain.Curve25519) (*olm.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	return sess, ok, nil
}

func (s *MemoryStore) AddSession(key domain.Curve25519, session *olm.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = session
	return nil
}

func (s *MemoryStore) UpdateSession(key domain.Curve25519, session *olm.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = session
	return nil
}

func (s *MemoryStore) PutDevices(user domain.UserID, devices map[domain.DeviceID]domain.DeviceIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[domain.DeviceID]domain.DeviceIdentity, len(devices))
	for id, dev := range devices {
		copied[id] = dev
	}
	s.devices[user] = copied
	return nil
}

func (s *MemoryStore) GetDevice(user domain.UserID, device domain.DeviceID) (domain.DeviceIdentity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dev, ok := s.devices[user][device]
	return dev, ok, nil
}

func (s *MemoryStore) GetDevices(user domain.UserID) (map[domain.DeviceID]domain.DeviceIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.DeviceID]domain.DeviceIdentity, len(s.devices[user]))
	for id, dev := range s.devices[user] {
		out[id] = dev
	}
	return out, nil
}

var (
	_ domain.CryptoStore = (*MemoryStore)(nil)
	_ domain.DeviceStore = (*MemoryStore)(nil)
)
