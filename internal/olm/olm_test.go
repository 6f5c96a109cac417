package olm_test

import (
	"bytes"
	"testing"

	domaintypes "mxbridge/internal/domain/types"
	"mxbridge/internal/olm"
)

func newAccountWithKeys(t *testing.T, otks int) *olm.Account {
	t.Helper()
	acc, err := olm.NewAccount()
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	if otks > 0 {
		if err := acc.GenerateOneTimeKeys(otks); err != nil {
			t.Fatalf("GenerateOneTimeKeys: %v", err)
		}
	}
	return acc
}

// claimOne pulls a single signed one-time key off bob, the way a claim
// response would deliver it.
func claimOne(t *testing.T, bob *olm.Account) domaintypes.Curve25519 {
	t.Helper()
	keys, err := bob.SignedOneTimeKeys("@bob:example.com", "BOBDEV")
	if err != nil {
		t.Fatalf("SignedOneTimeKeys: %v", err)
	}
	for _, k := range keys {
		return k.Key
	}
	t.Fatal("no one-time keys offered")
	return ""
}

func TestOutboundInbound_OneRoundTrip(t *testing.T) {
	alice := newAccountWithKeys(t, 0)
	bob := newAccountWithKeys(t, 1)

	sess, err := alice.NewOutboundSession(bob.IdentityKey(), claimOne(t, bob))
	if err != nil {
		t.Fatalf("NewOutboundSession: %v", err)
	}

	msg, err := sess.Encrypt([]byte("hello bob"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if msg.Type != 0 {
		t.Fatalf("first message type = %d, want pre-key (0)", msg.Type)
	}

	bobSess, plaintext, err := bob.NewInboundSession(msg)
	if err != nil {
		t.Fatalf("NewInboundSession: %v", err)
	}
	if !bytes.Equal(plaintext, []byte("hello bob")) {
		t.Fatalf("plaintext = %q, want %q", plaintext, "hello bob")
	}

	// Reply flows back and flips the initiator side to normal messages.
	reply, err := bobSess.Encrypt([]byte("hi alice"))
	if err != nil {
		t.Fatalf("reply Encrypt: %v", err)
	}
	got, err := sess.Decrypt(reply)
	if err != nil {
		t.Fatalf("reply Decrypt: %v", err)
	}
	if string(got) != "hi alice" {
		t.Fatalf("reply = %q, want %q", got, "hi alice")
	}

	next, err := sess.Encrypt([]byte("again"))
	if err != nil {
		t.Fatalf("second Encrypt: %v", err)
	}
	if next.Type != 1 {
		t.Fatalf("post-reply message type = %d, want normal (1)", next.Type)
	}
}

func TestInbound_ConsumesOneTimeKey(t *testing.T) {
	alice := newAccountWithKeys(t, 0)
	bob := newAccountWithKeys(t, 1)
	otk := claimOne(t, bob)

	sess, err := alice.NewOutboundSession(bob.IdentityKey(), otk)
	if err != nil {
		t.Fatalf("NewOutboundSession: %v", err)
	}
	msg, err := sess.Encrypt([]byte("x"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, _, err := bob.NewInboundSession(msg); err != nil {
		t.Fatalf("first NewInboundSession: %v", err)
	}

	// The key is gone now; replaying the pre-key message must fail.
	if _, _, err := bob.NewInboundSession(msg); err == nil {
		t.Fatal("expected replayed pre-key message to be rejected")
	}
}

func TestSession_PickleRoundTrip(t *testing.T) {
	alice := newAccountWithKeys(t, 0)
	bob := newAccountWithKeys(t, 1)

	sess, err := alice.NewOutboundSession(bob.IdentityKey(), claimOne(t, bob))
	if err != nil {
		t.Fatalf("NewOutboundSession: %v", err)
	}
	first, err := sess.Encrypt([]byte("one"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	blob, err := sess.Pickle()
	if err != nil {
		t.Fatalf("Pickle: %v", err)
	}
	restored, err := olm.UnpickleSession(blob)
	if err != nil {
		t.Fatalf("UnpickleSession: %v", err)
	}
	if restored.ID() != sess.ID() {
		t.Fatalf("restored session ID mismatch")
	}

	// The restored state continues the ratchet where the original left it.
	second, err := restored.Encrypt([]byte("two"))
	if err != nil {
		t.Fatalf("restored Encrypt: %v", err)
	}

	bobSess, pt, err := bob.NewInboundSession(first)
	if err != nil {
		t.Fatalf("NewInboundSession: %v", err)
	}
	if string(pt) != "one" {
		t.Fatalf("first plaintext = %q", pt)
	}
	pt2, err := bobSess.Decrypt(second)
	if err != nil {
		t.Fatalf("Decrypt second: %v", err)
	}
	if string(pt2) != "two" {
		t.Fatalf("second plaintext = %q", pt2)
	}
}

func TestAccount_PickleRoundTrip(t *testing.T) {
	bob := newAccountWithKeys(t, 2)

	blob, err := bob.Pickle()
	if err != nil {
		t.Fatalf("Pickle: %v", err)
	}
	restored, err := olm.UnpickleAccount(blob)
	if err != nil {
		t.Fatalf("UnpickleAccount: %v", err)
	}
	if restored.IdentityKey() != bob.IdentityKey() {
		t.Fatalf("identity key changed across pickle")
	}
	if restored.SigningKey() != bob.SigningKey() {
		t.Fatalf("signing key changed across pickle")
	}

	// The restored account can still complete an inbound handshake with a
	// key generated before pickling.
	alice := newAccountWithKeys(t, 0)
	sess, err := alice.NewOutboundSession(restored.IdentityKey(), claimOne(t, restored))
	if err != nil {
		t.Fatalf("NewOutboundSession: %v", err)
	}
	msg, err := sess.Encrypt([]byte("still works"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, _, err := restored.NewInboundSession(msg); err != nil {
		t.Fatalf("NewInboundSession after unpickle: %v", err)
	}
}
