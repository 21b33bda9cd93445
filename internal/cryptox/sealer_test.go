package cryptox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTrip(t *testing.T) {
	key, err := DeriveKey([]byte("server-secret"), "recovery-seal", 32)
	require.NoError(t, err)
	s, err := NewSealer(key)
	require.NoError(t, err)

	ct, nonce, err := s.Seal([]byte("K3NA-7QXW"), []byte("user-1"))
	require.NoError(t, err)

	pt, err := s.Open(ct, nonce, []byte("user-1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("K3NA-7QXW"), pt)
}

func TestSealer_OpenRejectsWrongOwner(t *testing.T) {
	s, err := NewSealer(make([]byte, 32))
	require.NoError(t, err)

	ct, nonce, err := s.Seal([]byte("secret"), []byte("user-1"))
	require.NoError(t, err)

	_, err = s.Open(ct, nonce, []byte("user-2"))
	assert.ErrorIs(t, err, ErrSealedDataCorrupt)

	_, err = s.Open(ct, nonce[:4], []byte("user-1"))
	assert.ErrorIs(t, err, ErrSealedDataCorrupt)
}

func TestNewSealer_BadKey(t *testing.T) {
	_, err := NewSealer([]byte("short"))
	assert.Error(t, err)
}
