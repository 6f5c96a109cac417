package crypto

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"

	domaintypes "mxbridge/internal/domain/types"
)

// SignJSON computes the detached signature of obj: the object is reduced
// to canonical JSON with the "signatures" and "unsigned" members removed,
// signed with priv, and the signature returned in unpadded base64.
func SignJSON(priv ed25519.PrivateKey, obj any) (string, error) {
	message, err := strippedCanonical(obj)
	if err != nil {
		return "", err
	}
	return B64(SignEd25519(priv, message)), nil
}

// VerifySignatureJSON checks the detached signature on obj attributed to
// userID's device deviceID against the caller-supplied signing key. The
// key must come from an independently trusted source, never from obj
// itself.
//
// Any malformed input -- missing signature block, wrong base64, corrupt
// key -- yields false; absence and corruption are policy-identical to an
// invalid signature.
func VerifySignatureJSON(
	obj any,
	userID domaintypes.UserID,
	deviceID domaintypes.DeviceID,
	key domaintypes.Ed25519,
) bool {
	sig, ok := extractSignature(obj, userID, deviceID)
	if !ok {
		return false
	}
	sigBytes, err := UnB64(sig)
	if err != nil {
		return false
	}
	keyBytes, err := UnB64(string(key))
	if err != nil {
		return false
	}
	message, err := strippedCanonical(obj)
	if err != nil {
		return false
	}
	return VerifyEd25519(keyBytes, message, sigBytes)
}

// strippedCanonical reduces obj to the canonical JSON bytes that are
// signed: everything except the signatures and unsigned members.
func strippedCanonical(obj any) ([]byte, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	// Decode with json.Number so large integers survive the round trip
	// exactly as SortJSON would emit them.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	delete(m, "signatures")
	delete(m, "unsigned")
	return CanonicalJSON(m)
}

// extractSignature pulls signatures[userID]["ed25519:"+deviceID] out of
// obj's JSON form.
func extractSignature(obj any, userID domaintypes.UserID, deviceID domaintypes.DeviceID) (string, bool) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return "", false
	}
	var outer struct {
		Signatures map[domaintypes.UserID]map[domaintypes.KeyID]string `json:"signatures"`
	}
	if err := json.Unmarshal(raw, &outer); err != nil {
		return "", false
	}
	byKey, ok := outer.Signatures[userID]
	if !ok {
		return "", false
	}
	sig, ok := byKey[domaintypes.NewKeyID(domaintypes.AlgorithmEd25519, string(deviceID))]
	return sig, ok
}
