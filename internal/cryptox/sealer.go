package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
)

var ErrSealedDataCorrupt = errors.New("sealed data corrupt")

// Sealer encrypts small secrets with AES-GCM under a fixed key.
// The key must be 16, 24 or 32 bytes.
type Sealer struct {
	aead cipher.AEAD
}

func NewSealer(key []byte) (*Sealer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext with a fresh random nonce; additional binds the
// ciphertext to its owner (e.g. the account id) so rows cannot be swapped.
func (s *Sealer) Seal(plaintext, additional []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	return s.aead.Seal(nil, nonce, plaintext, additional), nonce, nil
}

func (s *Sealer) Open(ciphertext, nonce, additional []byte) ([]byte, error) {
	if len(nonce) != s.aead.NonceSize() {
		return nil, ErrSealedDataCorrupt
	}
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, additional)
	if err != nil {
		return nil, ErrSealedDataCorrupt
	}
	return plaintext, nil
}
