package gateway

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"hash"
	"strings"
)

func verifyHMACHex(payload []byte, signatureHex string, key []byte, hashFunc func() hash.Hash) bool {
	sig := strings.TrimSpace(signatureHex)
	if sig == "" || len(key) == 0 {
		return false
	}
	expected, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}
	mac := hmac.New(hashFunc, key)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}

// secretEqual compares a delivered shared secret with the configured one
// in constant time.
func secretEqual(got, want string) bool {
	got = strings.TrimSpace(got)
	want = strings.TrimSpace(want)
	if got == "" || want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// digestEqual compares two hex digests case-insensitively in constant time.
func digestEqual(got, want string) bool {
	got = strings.ToLower(strings.TrimSpace(got))
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(strings.ToLower(want))) == 1
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
