// Package cryptox holds the cryptographic primitives used by the security
// core: the argon2id PIN hasher, token digests, subkey derivation and the
// AES-GCM sealer for retrievable secrets.
package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID = "argon2id"

	minMemoryKB   uint32 = 8 * 1024
	minSaltLength        = 16
	minKeyLength  uint32 = 16
)

var ErrMalformedHash = errors.New("malformed credential hash")

// Params are the argon2id cost parameters.
type Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams mirrors the cost used for vault master keys.
func DefaultParams() Params {
	return Params{Memory: 64 * 1024, Time: 1, Parallelism: 4, SaltLength: 16, KeyLength: 32}
}

// Validate rejects parameters too weak for low-entropy secrets.
func (p Params) Validate() error {
	switch {
	case p.Memory < minMemoryKB:
		return fmt.Errorf("argon2 memory must be >= %d KiB", minMemoryKB)
	case p.Time < 1:
		return errors.New("argon2 time must be >= 1")
	case p.Parallelism < 1:
		return errors.New("argon2 parallelism must be >= 1")
	case p.SaltLength < minSaltLength:
		return fmt.Errorf("salt length must be >= %d", minSaltLength)
	case p.KeyLength < minKeyLength:
		return fmt.Errorf("key length must be >= %d", minKeyLength)
	}
	return nil
}

// Hasher computes and verifies salted argon2id digests. Digests are stored
// in PHC string form so that the salt and the cost travel with the hash.
type Hasher struct {
	params Params
	dummy  string
}

func NewHasher(p Params) (*Hasher, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	h := &Hasher{params: p}
	salt, err := h.NewSalt()
	if err != nil {
		return nil, err
	}
	h.dummy = h.Hash(GenerateFiller(16), salt)
	return h, nil
}

// NewSalt returns a fresh random salt. Every credential set or rotation gets its own.
func (h *Hasher) NewSalt() ([]byte, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Hash is a pure function of secret and salt under the hasher's params.
func (h *Hasher) Hash(secret, salt []byte) string {
	key := argon2.IDKey(secret, salt, h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		h.params.Memory, h.params.Time, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

// Verify recomputes the digest with the salt and cost stored in encoded and
// compares in constant time.
func (h *Hasher) Verify(secret []byte, encoded string) (bool, error) {
	p, salt, want, err := decode(encoded)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey(secret, salt, p.Time, p.Memory, p.Parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// VerifyOrDummy behaves like Verify, but when encoded is empty it burns the
// same work against an internal dummy digest and reports false. Callers use
// it so that absent credentials cost as much time as present ones.
func (h *Hasher) VerifyOrDummy(secret []byte, encoded string) (bool, error) {
	if encoded == "" {
		_, err := h.Verify(secret, h.dummy)
		return false, err
	}
	return h.Verify(secret, encoded)
}

// GenerateFiller returns n random bytes; it never fails in practice.
func GenerateFiller(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return b
}

func decode(encoded string) (Params, []byte, []byte, error) {
	var p Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return p, nil, nil, ErrMalformedHash
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return p, nil, nil, ErrMalformedHash
	}

	var parallelism uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &parallelism); err != nil {
		return p, nil, nil, ErrMalformedHash
	}
	if p.Memory < minMemoryKB || p.Time < 1 || parallelism < 1 || parallelism > 255 {
		return p, nil, nil, ErrMalformedHash
	}
	p.Parallelism = uint8(parallelism)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < minSaltLength {
		return p, nil, nil, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) < int(minKeyLength) {
		return p, nil, nil, ErrMalformedHash
	}
	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))

	return p, salt, key, nil
}
