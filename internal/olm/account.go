package olm

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"mxbridge/internal/crypto"
	domaintypes "mxbridge/internal/domain/types"
)

var (
	// ErrUnknownOneTimeKey is returned when a pre-key message targets a
	// one-time key this account no longer holds.
	ErrUnknownOneTimeKey = errors.New("olm: pre-key message targets an unknown one-time key")
	// ErrNotPreKeyMessage is returned when an inbound session is created
	// from a message that cannot bootstrap one.
	ErrNotPreKeyMessage = errors.New("olm: message is not a pre-key message")
)

type oneTimeKeyPair struct {
	ID   uint32   `cbor:"id"`
	Priv [32]byte `cbor:"priv"`
	Pub  [32]byte `cbor:"pub"`
}

// Account is the local device's long-term identity: a Curve25519 identity
// key pair, an Ed25519 signing key pair, and the pool of unpublished
// one-time keys. Immutable after creation except for the one-time key
// pool, which is guarded by its own lock.
type Account struct {
	idPriv   [32]byte
	idPub    [32]byte
	signPriv ed25519.PrivateKey
	signPub  ed25519.PublicKey

	otkMu       sync.Mutex
	oneTimeKeys map[domaintypes.Curve25519]oneTimeKeyPair
	nextKeyID   uint32
}

// NewAccount generates a fresh device identity.
func NewAccount() (*Account, error) {
	idPriv, idPub, err := crypto.GenerateX25519()
	if err != nil {
		return nil, err
	}
	signPriv, signPub, err := crypto.GenerateEd25519()
	if err != nil {
		return nil, err
	}
	return &Account{
		idPriv:      idPriv,
		idPub:       idPub,
		signPriv:    signPriv,
		signPub:     signPub,
		oneTimeKeys: make(map[domaintypes.Curve25519]oneTimeKeyPair),
	}, nil
}

// IdentityKey returns the Curve25519 identity key in wire form.
func (a *Account) IdentityKey() domaintypes.Curve25519 {
	return domaintypes.Curve25519(crypto.B64(a.idPub[:]))
}

// SigningKey returns the Ed25519 signing key in wire form.
func (a *Account) SigningKey() domaintypes.Ed25519 {
	return domaintypes.Ed25519(crypto.B64(a.signPub))
}

// SignJSON signs obj's canonical JSON with the account signing key.
func (a *Account) SignJSON(obj any) (string, error) {
	return crypto.SignJSON(a.signPriv, obj)
}

// GenerateOneTimeKeys adds count fresh one-time keys to the pool.
func (a *Account) GenerateOneTimeKeys(count int) error {
	a.otkMu.Lock()
	defer a.otkMu.Unlock()
	for i := 0; i < count; i++ {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			return err
		}
		a.nextKeyID++
		pair := oneTimeKeyPair{ID: a.nextKeyID, Priv: priv, Pub: pub}
		a.oneTimeKeys[domaintypes.Curve25519(crypto.B64(pub[:]))] = pair
	}
	return nil
}

// SignedOneTimeKeys returns the current pool as signed key objects ready
// for publication, keyed by "signed_curve25519:<id>".
func (a *Account) SignedOneTimeKeys(
	userID domaintypes.UserID,
	deviceID domaintypes.DeviceID,
) (map[domaintypes.KeyID]domaintypes.SignedOneTimeKey, error) {
	a.otkMu.Lock()
	defer a.otkMu.Unlock()

	out := make(map[domaintypes.KeyID]domaintypes.SignedOneTimeKey, len(a.oneTimeKeys))
	for pub, pair := range a.oneTimeKeys {
		key := domaintypes.SignedOneTimeKey{Key: pub}
		sig, err := a.SignJSON(key)
		if err != nil {
			return nil, err
		}
		key.Signatures = domaintypes.Signatures{
			userID: {
				domaintypes.NewKeyID(domaintypes.AlgorithmEd25519, string(deviceID)): sig,
			},
		}
		out[domaintypes.NewKeyID(domaintypes.AlgorithmSignedCurve25519, keyIDName(pair.ID))] = key
	}
	return out, nil
}

// NewOutboundSession establishes a session to a remote device from its
// identity key and a claimed, already-verified one-time key. The returned
// session is not usable by anyone else until it has been persisted.
func (a *Account) NewOutboundSession(
	peerIdentityKey, peerOneTimeKey domaintypes.Curve25519,
) (*Session, error) {
	peerID, err := decodeKey(peerIdentityKey)
	if err != nil {
		return nil, fmt.Errorf("olm: bad peer identity key: %w", err)
	}
	peerOTK, err := decodeKey(peerOneTimeKey)
	if err != nil {
		return nil, fmt.Errorf("olm: bad peer one-time key: %w", err)
	}

	ephPriv, ephPub, err := crypto.GenerateX25519()
	if err != nil {
		return nil, err
	}

	root, err := sharedRoot(
		dh3{a.idPriv, peerOTK}, // DH(IK_a, OTK_b)
		dh3{ephPriv, peerID},   // DH(EK_a, IK_b)
		dh3{ephPriv, peerOTK},  // DH(EK_a, OTK_b)
	)
	if err != nil {
		return nil, err
	}

	ratchet, err := initInitiator(root, peerOTK)
	if err != nil {
		return nil, err
	}
	return &Session{
		PeerIdentityKey: peerID,
		SenderIdentity:  a.idPub,
		EphemeralPub:    ephPub,
		OneTimeKeyPub:   peerOTK,
		Ratchet:         ratchet,
	}, nil
}

// NewInboundSession consumes a pre-key message, creates the responder-side
// session, and returns it together with the message's plaintext. The
// targeted one-time key is removed from the pool.
func (a *Account) NewInboundSession(msg domaintypes.OlmCiphertext) (*Session, []byte, error) {
	if msg.Type != preKeyMessageType {
		return nil, nil, ErrNotPreKeyMessage
	}
	payload, err := decodeMessage(msg.Body)
	if err != nil {
		return nil, nil, err
	}
	if payload.PreKey == nil {
		return nil, nil, ErrNotPreKeyMessage
	}
	pk := payload.PreKey

	a.otkMu.Lock()
	pair, ok := a.oneTimeKeys[domaintypes.Curve25519(crypto.B64(pk.OneTimeKey[:]))]
	if ok {
		delete(a.oneTimeKeys, domaintypes.Curve25519(crypto.B64(pk.OneTimeKey[:])))
	}
	a.otkMu.Unlock()
	if !ok {
		return nil, nil, ErrUnknownOneTimeKey
	}

	root, err := sharedRoot(
		dh3{pair.Priv, pk.IdentityKey}, // DH(OTK_b, IK_a)
		dh3{a.idPriv, pk.Ephemeral},    // DH(IK_b, EK_a)
		dh3{pair.Priv, pk.Ephemeral},   // DH(OTK_b, EK_a)
	)
	if err != nil {
		return nil, nil, err
	}

	ratchet, err := initResponder(root, pair.Priv, payload.Header.DHPub)
	if err != nil {
		return nil, nil, err
	}
	sess := &Session{
		PeerIdentityKey: pk.IdentityKey,
		SenderIdentity:  a.idPub,
		EphemeralPub:    pk.Ephemeral,
		OneTimeKeyPub:   pair.Pub,
		Ratchet:         ratchet,
	}
	plaintext, err := sess.Ratchet.decrypt(nil, payload.Header, payload.Ciphertext)
	if err != nil {
		return nil, nil, err
	}
	sess.Established = true
	return sess, plaintext, nil
}

// dh3 is one leg of the establishment triple-DH.
type dh3 struct {
	priv [32]byte
	pub  [32]byte
}

// sharedRoot derives the session root key from the concatenated DH legs.
func sharedRoot(legs ...dh3) ([]byte, error) {
	concat := make([]byte, 0, len(legs)*32)
	for _, leg := range legs {
		secret, err := crypto.DH(leg.priv, leg.pub)
		if err != nil {
			return nil, err
		}
		concat = append(concat, secret[:]...)
	}
	sum := sha256.Sum256(concat)
	return sum[:], nil
}

func keyIDName(id uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], id)
	return crypto.B64(b[:])
}

func decodeKey(k domaintypes.Curve25519) ([32]byte, error) {
	var out [32]byte
	b, err := crypto.UnB64(string(k))
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("key is %d bytes, want 32", len(b))
	}
	copy(out[:], b)
	return out, nil
}

// --- pickling ---

type pickledAccount struct {
	IdPriv      [32]byte         `cbor:"id_priv"`
	IdPub       [32]byte         `cbor:"id_pub"`
	SignPriv    []byte           `cbor:"sign_priv"`
	SignPub     []byte           `cbor:"sign_pub"`
	OneTimeKeys []oneTimeKeyPair `cbor:"one_time_keys"`
	NextKeyID   uint32           `cbor:"next_key_id"`
}

// Pickle serializes the account for storage.
func (a *Account) Pickle() ([]byte, error) {
	a.otkMu.Lock()
	defer a.otkMu.Unlock()

	p := pickledAccount{
		IdPriv:    a.idPriv,
		IdPub:     a.idPub,
		SignPriv:  a.signPriv,
		SignPub:   a.signPub,
		NextKeyID: a.nextKeyID,
	}
	for _, pair := range a.oneTimeKeys {
		p.OneTimeKeys = append(p.OneTimeKeys, pair)
	}
	return cbor.Marshal(p)
}

// UnpickleAccount restores an account serialized by Pickle.
func UnpickleAccount(data []byte) (*Account, error) {
	var p pickledAccount
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("olm: unpickle account: %w", err)
	}
	a := &Account{
		idPriv:      p.IdPriv,
		idPub:       p.IdPub,
		signPriv:    ed25519.PrivateKey(p.SignPriv),
		signPub:     ed25519.PublicKey(p.SignPub),
		oneTimeKeys: make(map[domaintypes.Curve25519]oneTimeKeyPair, len(p.OneTimeKeys)),
		nextKeyID:   p.NextKeyID,
	}
	for _, pair := range p.OneTimeKeys {
		a.oneTimeKeys[domaintypes.Curve25519(crypto.B64(pair.Pub[:]))] = pair
	}
	return a, nil
}
