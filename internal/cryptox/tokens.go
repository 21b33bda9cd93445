package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/hex"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/dmitrijs2005/pinvault/internal/common"
)

const recoveryKeyBytes = 20

var recoveryEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewSessionToken returns a 256-bit random bearer token, hex encoded.
func NewSessionToken() (string, error) {
	return common.MakeRandHexString(32)
}

// DigestToken is the lookup digest stored instead of a high-entropy token.
// Bearer tokens and recovery keys carry enough entropy that a fast hash
// suffices; the plaintext cannot be re-derived from it.
func DigestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// EqualDigest compares two digests in constant time.
func EqualDigest(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// NewRecoveryKey returns a 160-bit key formatted as dash separated groups
// of four base32 characters, e.g. "K3NA-7QXW-...".
func NewRecoveryKey() string {
	raw := common.GenerateRandByteArray(recoveryKeyBytes)
	defer common.WipeByteArray(raw)

	enc := recoveryEncoding.EncodeToString(raw)
	groups := make([]string, 0, len(enc)/4)
	for i := 0; i < len(enc); i += 4 {
		groups = append(groups, enc[i:min(i+4, len(enc))])
	}
	return strings.Join(groups, "-")
}

// NormalizeRecoveryKey strips separators and whitespace and upper-cases the
// key so that hand-typed input matches the issued form.
func NormalizeRecoveryKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(key) {
		if r == '-' || r == ' ' || r == '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DeriveKey expands secret into a size-byte subkey bound to info.
func DeriveKey(secret []byte, info string, size int) ([]byte, error) {
	key := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, err
	}
	return key, nil
}
