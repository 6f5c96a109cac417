package olm

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"mxbridge/internal/crypto"
	"mxbridge/internal/util/memzero"
)

const (
	aeadKeySize    = 32
	nonceSize      = chacha20poly1305.NonceSize
	maxSkippedKeys = 1000

	labelRatchetRoot  = "mxolm/rk"
	labelRatchetChain = "mxolm/ck"
)

var errChainUninitialised = errors.New("olm: ratchet chain key is uninitialised")

// ratchetHeader accompanies every ratchet message.
type ratchetHeader struct {
	DHPub     [32]byte `cbor:"dh_pub"`
	PrevCount uint32   `cbor:"pn"`
	Count     uint32   `cbor:"n"`
}

// RatchetState is the evolving secret state of one session. Fields are
// exported only for pickling; nothing outside this package touches them.
type RatchetState struct {
	RootKey      []byte            `cbor:"rk"`
	DHPriv       [32]byte          `cbor:"dh_priv"`
	DHPub        [32]byte          `cbor:"dh_pub"`
	PeerDHPub    [32]byte          `cbor:"peer_dh_pub"`
	SendChainKey []byte            `cbor:"send_ck,omitempty"`
	RecvChainKey []byte            `cbor:"recv_ck,omitempty"`
	SendCount    uint32            `cbor:"ns"`
	RecvCount    uint32            `cbor:"nr"`
	PrevCount    uint32            `cbor:"pn"`
	Skipped      map[string][]byte `cbor:"skipped"`
}

// initInitiator seeds the sending chain from the shared root using a fresh
// ratchet key pair and the peer's base key (the claimed one-time key).
func initInitiator(root []byte, peerBase [32]byte) (RatchetState, error) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return RatchetState{}, err
	}
	dh, err := crypto.DH(priv, peerBase)
	if err != nil {
		return RatchetState{}, err
	}
	newRoot, sendCK := kdfRoot(root, dh[:])
	memzero.Zero32(&dh)

	return RatchetState{
		RootKey:      newRoot,
		DHPriv:       priv,
		DHPub:        pub,
		PeerDHPub:    peerBase, // placeholder until the first remote ratchet pub arrives
		SendChainKey: sendCK,
		Skipped:      make(map[string][]byte),
	}, nil
}

// initResponder seeds the receiving chain from the shared root using the
// responder's base private key (its consumed one-time key) and the
// sender's first ratchet pub.
func initResponder(root []byte, basePriv, senderRatchetPub [32]byte) (RatchetState, error) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return RatchetState{}, err
	}
	dh, err := crypto.DH(basePriv, senderRatchetPub)
	if err != nil {
		return RatchetState{}, err
	}
	newRoot, recvCK := kdfRoot(root, dh[:])
	memzero.Zero32(&dh)

	return RatchetState{
		RootKey:      newRoot,
		DHPriv:       priv,
		DHPub:        pub,
		PeerDHPub:    senderRatchetPub,
		RecvChainKey: recvCK,
		Skipped:      make(map[string][]byte),
	}, nil
}

// encrypt produces a header and ciphertext, auto-stepping the DH ratchet
// on the first send after responding.
func (st *RatchetState) encrypt(ad, plaintext []byte) (ratchetHeader, []byte, error) {
	if len(st.SendChainKey) == 0 {
		// Responder's first send: perform a DH ratchet step.
		st.PrevCount = st.SendCount
		st.SendCount = 0

		newPriv, newPub, err := crypto.GenerateX25519()
		if err != nil {
			return ratchetHeader{}, nil, err
		}
		dh, err := crypto.DH(newPriv, st.PeerDHPub)
		if err != nil {
			return ratchetHeader{}, nil, err
		}
		newRoot, sendCK := kdfRoot(st.RootKey, dh[:])
		memzero.Zero32(&dh)

		st.RootKey = newRoot
		st.DHPriv, st.DHPub = newPriv, newPub
		st.SendChainKey = sendCK
	}

	mk, err := st.nextSendKey()
	if err != nil {
		return ratchetHeader{}, nil, err
	}
	h := ratchetHeader{DHPub: st.DHPub, PrevCount: st.PrevCount, Count: st.SendCount}

	ct, err := seal(mk, h, ad, plaintext)
	memzero.Zero(mk)
	if err != nil {
		return ratchetHeader{}, nil, err
	}
	st.SendCount++
	return h, ct, nil
}

// decrypt handles skipped keys, performs a DH ratchet step on new remote
// pubs, then opens the message.
func (st *RatchetState) decrypt(ad []byte, header ratchetHeader, ciphertext []byte) ([]byte, error) {
	if st.PeerDHPub == header.DHPub {
		st.skipUntil(header.Count)
		keyID := skippedKeyID(st.PeerDHPub, header.Count)
		if mk, ok := st.Skipped[keyID]; ok {
			delete(st.Skipped, keyID)
			pt, err := open(mk, header, ad, ciphertext)
			memzero.Zero(mk)
			if err != nil {
				return nil, err
			}
			st.RecvCount = header.Count + 1
			return pt, nil
		}
	} else {
		// New remote ratchet pub: advance receiving and sending chains.
		st.skipUntil(header.PrevCount)

		dh, err := crypto.DH(st.DHPriv, header.DHPub)
		if err != nil {
			return nil, err
		}
		rootAfterRecv, recvCK := kdfRoot(st.RootKey, dh[:])
		memzero.Zero32(&dh)

		newPriv, newPub, err := crypto.GenerateX25519()
		if err != nil {
			return nil, err
		}
		dh2, err := crypto.DH(newPriv, header.DHPub)
		if err != nil {
			return nil, err
		}
		rootAfterSend, sendCK := kdfRoot(rootAfterRecv, dh2[:])
		memzero.Zero32(&dh2)

		st.PrevCount = st.SendCount
		st.SendCount, st.RecvCount = 0, 0
		st.RootKey = rootAfterSend
		st.DHPriv, st.DHPub = newPriv, newPub
		st.PeerDHPub = header.DHPub
		st.SendChainKey, st.RecvChainKey = sendCK, recvCK
	}

	mk, err := st.nextRecvKey()
	if err != nil {
		return nil, err
	}
	pt, err := open(mk, header, ad, ciphertext)
	memzero.Zero(mk)
	if err != nil {
		return nil, err
	}
	st.RecvCount++
	return pt, nil
}

// --- helpers ---

func seal(mk []byte, header ratchetHeader, ad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:aeadKeySize])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	binary.BigEndian.PutUint32(nonce[nonceSize-4:], header.Count)
	return aead.Seal(nil, nonce, plaintext, headerAD(header, ad)), nil
}

func open(mk []byte, header ratchetHeader, ad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:aeadKeySize])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	binary.BigEndian.PutUint32(nonce[nonceSize-4:], header.Count)
	return aead.Open(nil, nonce, ciphertext, headerAD(header, ad))
}

func headerAD(h ratchetHeader, ad []byte) []byte {
	out := make([]byte, 0, len(ad)+32+8)
	out = append(out, ad...)
	out = append(out, h.DHPub[:]...)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], h.PrevCount)
	out = append(out, b[:]...)
	binary.BigEndian.PutUint32(b[:], h.Count)
	return append(out, b[:]...)
}

// kdfRoot advances the root key and derives a new chain key.
func kdfRoot(root, dh []byte) (newRoot, chainKey []byte) {
	r := hkdf.New(sha256.New, dh, root, []byte(labelRatchetRoot))
	newRoot = make([]byte, 32)
	chainKey = make([]byte, 32)
	_, _ = io.ReadFull(r, newRoot)
	_, _ = io.ReadFull(r, chainKey)
	return
}

// kdfChain advances a chain key and derives a message key.
func kdfChain(ck []byte) (nextCK, mk []byte) {
	r := hkdf.New(sha256.New, ck, nil, []byte(labelRatchetChain))
	nextCK = make([]byte, 32)
	mk = make([]byte, 32)
	_, _ = io.ReadFull(r, nextCK)
	_, _ = io.ReadFull(r, mk)
	return
}

func (st *RatchetState) nextSendKey() ([]byte, error) {
	if len(st.SendChainKey) == 0 {
		return nil, errChainUninitialised
	}
	next, mk := kdfChain(st.SendChainKey)
	st.SendChainKey = next
	return mk, nil
}

func (st *RatchetState) nextRecvKey() ([]byte, error) {
	if len(st.RecvChainKey) == 0 {
		return nil, errChainUninitialised
	}
	next, mk := kdfChain(st.RecvChainKey)
	st.RecvChainKey = next
	return mk, nil
}

func skippedKeyID(peer [32]byte, n uint32) string {
	b := make([]byte, 32+4)
	copy(b, peer[:])
	binary.BigEndian.PutUint32(b[32:], n)
	return string(b)
}

// skipUntil derives and stores message keys up to pn with a hard cap.
func (st *RatchetState) skipUntil(pn uint32) {
	for st.RecvCount < pn {
		mk, err := st.nextRecvKey()
		if err != nil {
			return
		}
		if len(st.Skipped) >= maxSkippedKeys {
			for k := range st.Skipped {
				delete(st.Skipped, k)
				break
			}
		}
		st.Skipped[skippedKeyID(st.PeerDHPub, st.RecvCount)] = mk
		st.RecvCount++
	}
}
