package crypto_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mxbridge/internal/crypto"
	domaintypes "mxbridge/internal/domain/types"
)

const (
	testUser   = domaintypes.UserID("@alice:example.com")
	testDevice = domaintypes.DeviceID("ALICEDEV")
)

type signedObject struct {
	Key        string                 `json:"key"`
	Signatures domaintypes.Signatures `json:"signatures,omitempty"`
	Unsigned   map[string]any         `json:"unsigned,omitempty"`
}

func signedFixture(t *testing.T) (signedObject, domaintypes.Ed25519) {
	t.Helper()
	priv, pub, err := crypto.GenerateEd25519()
	require.NoError(t, err)

	obj := signedObject{Key: "AAAA"}
	sig, err := crypto.SignJSON(priv, obj)
	require.NoError(t, err)
	obj.Signatures = domaintypes.Signatures{
		testUser: {domaintypes.NewKeyID(domaintypes.AlgorithmEd25519, string(testDevice)): sig},
	}
	return obj, domaintypes.Ed25519(crypto.B64(pub))
}

func TestVerifySignatureJSON_Valid(t *testing.T) {
	obj, pub := signedFixture(t)
	assert.True(t, crypto.VerifySignatureJSON(obj, testUser, testDevice, pub))
}

func TestVerifySignatureJSON_IgnoresUnsigned(t *testing.T) {
	obj, pub := signedFixture(t)
	obj.Unsigned = map[string]any{"device_display_name": "injected later"}
	assert.True(t, crypto.VerifySignatureJSON(obj, testUser, testDevice, pub))
}

func TestVerifySignatureJSON_WrongKey(t *testing.T) {
	obj, _ := signedFixture(t)
	_, otherPub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	assert.False(t, crypto.VerifySignatureJSON(
		obj, testUser, testDevice, domaintypes.Ed25519(crypto.B64(otherPub))))
}

func TestVerifySignatureJSON_TamperedContent(t *testing.T) {
	obj, pub := signedFixture(t)
	obj.Key = "BBBB"
	assert.False(t, crypto.VerifySignatureJSON(obj, testUser, testDevice, pub))
}

func TestVerifySignatureJSON_MissingBlock(t *testing.T) {
	obj, pub := signedFixture(t)
	obj.Signatures = nil
	assert.False(t, crypto.VerifySignatureJSON(obj, testUser, testDevice, pub))
}

func TestVerifySignatureJSON_WrongAttribution(t *testing.T) {
	obj, pub := signedFixture(t)
	assert.False(t, crypto.VerifySignatureJSON(obj, "@mallory:example.com", testDevice, pub))
	assert.False(t, crypto.VerifySignatureJSON(obj, testUser, "OTHERDEV", pub))
}

func TestVerifySignatureJSON_MalformedInputsReturnFalse(t *testing.T) {
	obj, pub := signedFixture(t)

	corrupt := obj
	corrupt.Signatures = domaintypes.Signatures{
		testUser: {domaintypes.NewKeyID(domaintypes.AlgorithmEd25519, string(testDevice)): "!!not-base64!!"},
	}
	assert.False(t, crypto.VerifySignatureJSON(corrupt, testUser, testDevice, pub))

	assert.False(t, crypto.VerifySignatureJSON(obj, testUser, testDevice, "short-key"))
}

func TestSignJSON_PreservesLargeIntegers(t *testing.T) {
	priv, pub, err := crypto.GenerateEd25519()
	require.NoError(t, err)

	// Beyond float64's exact-integer range; the signed message must
	// carry the literal digits, not a rounded value.
	obj := map[string]any{"counter": json.RawMessage("9007199254740993")}
	sig, err := crypto.SignJSON(priv, obj)
	require.NoError(t, err)

	message, err := crypto.SortJSON([]byte(`{"counter":9007199254740993}`))
	require.NoError(t, err)
	rawSig, err := crypto.UnB64(sig)
	require.NoError(t, err)
	assert.True(t, crypto.VerifyEd25519(pub, message, rawSig))
}

func TestB64_RoundTripUnpadded(t *testing.T) {
	raw := []byte{0, 1, 2, 253, 254, 255}
	s := crypto.B64(raw)
	assert.NotContains(t, s, "=")
	back, err := crypto.UnB64(s)
	require.NoError(t, err)
	assert.Equal(t, raw, back)

	// Padded input from other implementations decodes too.
	padded, err := crypto.UnB64("AAEC/Q==")
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 253}, padded)
}

func TestEncryptDecryptSecret(t *testing.T) {
	salt := make([]byte, crypto.SaltBytes)
	copy(salt, "0123456789abcdef")

	nonce, ct, err := crypto.EncryptSecret("pickle-key", []byte("account blob"), salt)
	require.NoError(t, err)

	pt, err := crypto.DecryptSecret("pickle-key", salt, nonce, ct)
	require.NoError(t, err)
	assert.Equal(t, "account blob", string(pt))

	_, err = crypto.DecryptSecret("wrong-key", salt, nonce, ct)
	assert.Error(t, err)
}
