package store

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/chacha20poly1305"

	"mxbridge/internal/crypto"
	"mxbridge/internal/domain"
	"mxbridge/internal/olm"
)

var (
	accountBucket  = []byte("account")
	sessionsBucket = []byte("sessions")
	devicesBucket  = []byte("devices")
	membersBucket  = []byte("room-members")
	roomsBucket    = []byte("room-state")

	accountKey = []byte("pickle")
	saltKey    = []byte("salt")
)

// BoltStore is the bbolt-backed implementation of the crypto, device, and
// room-state stores. Safe for concurrent use.
type BoltStore struct {
	db   *bolt.DB
	aead chachaAEAD

	cacheMu   sync.RWMutex
	roomCache map[domain.RoomID]*cachedRoom
}

type chachaAEAD interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// NewBolt opens (creating as needed) the database at path. pickleKey
// protects account and session blobs at rest; the sealing key is derived
// once per open from a salt persisted alongside the data.
func NewBolt(path, pickleKey string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	var salt []byte
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{accountBucket, sessionsBucket, devicesBucket, membersBucket, roomsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		bkt := tx.Bucket(accountBucket)
		salt = append([]byte(nil), bkt.Get(saltKey)...)
		if len(salt) == 0 {
			salt = make([]byte, crypto.SaltBytes)
			if _, err := rand.Read(salt); err != nil {
				return err
			}
			return bkt.Put(saltKey, salt)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init buckets: %w", err)
	}

	aead, err := chacha20poly1305.New(crypto.DeriveKEK(pickleKey, salt))
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{
		db:        db,
		aead:      aead,
		roomCache: make(map[domain.RoomID]*cachedRoom),
	}, nil
}

// Close releases the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

func (s *BoltStore) seal(plaintext []byte) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		panic("store: rng failure: " + err.Error())
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil)
}

func (s *BoltStore) open(blob []byte) ([]byte, error) {
	if len(blob) < chacha20poly1305.NonceSize {
		return nil, errors.New("store: sealed blob too short")
	}
	return s.aead.Open(nil, blob[:chacha20poly1305.NonceSize], blob[chacha20poly1305.NonceSize:], nil)
}

// ---------- Account ----------

// PutAccount pickles and seals the local account.
func (s *BoltStore) PutAccount(account *olm.Account) error {
	pickle, err := account.Pickle()
	if err != nil {
		return err
	}
	sealed := s.seal(pickle)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(accountBucket).Put(accountKey, sealed)
	})
}

// GetAccount loads the local account, reporting false when none was ever
// stored.
func (s *BoltStore) GetAccount() (*olm.Account, bool, error) {
	var blob []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		blob = append([]byte(nil), tx.Bucket(accountBucket).Get(accountKey)...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if len(blob) == 0 {
		return nil, false, nil
	}
	pickle, err := s.open(blob)
	if err != nil {
		return nil, false, fmt.Errorf("store: unseal account: %w", err)
	}
	account, err := olm.UnpickleAccount(pickle)
	if err != nil {
		return nil, false, err
	}
	return account, true, nil
}

// ---------- Sessions ----------

// HasSession reports whether a session exists for the identity key.
func (s *BoltStore) HasSession(key domain.Curve25519) (bool, error) {
	var has bool
	err := s.db.View(func(tx *bolt.Tx) error {
		has = tx.Bucket(sessionsBucket).Get([]byte(key)) != nil
		return nil
	})
	return has, err
}

// GetSession loads the session for the identity key.
func (s *BoltStore) GetSession(key domain.Curve25519) (*olm.Session, bool, error) {
	var blob []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		blob = append([]byte(nil), tx.Bucket(sessionsBucket).Get([]byte(key))...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if len(blob) == 0 {
		return nil, false, nil
	}
	pickle, err := s.open(blob)
	if err != nil {
		return nil, false, fmt.Errorf("store: unseal session %s: %w", key, err)
	}
	session, err := olm.UnpickleSession(pickle)
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// AddSession persists a newly created session.
func (s *BoltStore) AddSession(key domain.Curve25519, session *olm.Session) error {
	return s.putSession(key, session)
}

// UpdateSession persists an advanced ratchet state.
func (s *BoltStore) UpdateSession(key domain.Curve25519, session *olm.Session) error {
	return s.putSession(key, session)
}

func (s *BoltStore) putSession(key domain.Curve25519, session *olm.Session) error {
	pickle, err := session.Pickle()
	if err != nil {
		return err
	}
	sealed := s.seal(pickle)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put([]byte(key), sealed)
	})
}

// Compile-time assertions for the store contracts.
var (
	_ domain.CryptoStore = (*BoltStore)(nil)
	_ domain.DeviceStore = (*BoltStore)(nil)
	_ domain.StateStore  = (*BoltStore)(nil)
)
