package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureKeyPairCreatesThenLoads(t *testing.T) {
	dir := t.TempDir()

	pub, priv, created, err := EnsureKeyPair(dir)
	require.NoError(t, err)
	assert.True(t, created)

	pub2, priv2, created2, err := EnsureKeyPair(dir)
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, pub, pub2)
	assert.Equal(t, priv, priv2)
}

func TestSignAndVerify(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	sig := SignData(priv, []byte("block-hash"))

	ok, err := VerifySignature(pub, []byte("block-hash"), sig)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifySignature(pub, []byte("other"), sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifySignatureRejectsBadHex(t *testing.T) {
	pub, _, err := GenerateKeyPair()
	require.NoError(t, err)

	_, err = VerifySignature(pub, []byte("x"), "not-hex")
	assert.Error(t, err)
}

func TestLoadKeyDirPublicKey(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadKeyDirPublicKey(dir)
	assert.Error(t, err)

	pub, _, _, err := EnsureKeyPair(dir)
	require.NoError(t, err)

	loaded, err := LoadKeyDirPublicKey(dir)
	require.NoError(t, err)
	assert.Equal(t, pub, loaded)
}
