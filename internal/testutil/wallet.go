package testutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
)

// NewWallet returns the base58 address of a fresh ed25519 key
func NewWallet(t testing.TB) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base58.Encode(pub)
}

// NewSignature returns a well-formed base58 transaction signature
func NewSignature(t testing.TB) string {
	t.Helper()
	sig := make([]byte, 64)
	_, err := rand.Read(sig)
	require.NoError(t, err)
	return base58.Encode(sig)
}

// Keypair is a test wallet able to sign messages
type Keypair struct {
	Address string
	private ed25519.PrivateKey
}

// NewKeypair returns a fresh signing wallet
func NewKeypair(t testing.TB) *Keypair {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return &Keypair{Address: base58.Encode(pub), private: priv}
}

// Sign returns the base58 signature of message
func (k *Keypair) Sign(message []byte) string {
	return base58.Encode(ed25519.Sign(k.private, message))
}
