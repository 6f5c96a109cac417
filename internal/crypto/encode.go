package crypto

import "encoding/base64"

// B64 returns unpadded standard base64, the encoding Matrix uses for keys
// and signatures.
func B64(b []byte) string { return base64.RawStdEncoding.EncodeToString(b) }

// UnB64 decodes unpadded standard base64. Padded input is accepted too, so
// material produced by other implementations round-trips.
func UnB64(s string) ([]byte, error) {
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(s)
}
