package keys_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/wallet-provider/internal/devhost/keys"
)

func TestKeystoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.json")

	ks, err := keys.WriteKeystore(path, testMnemonic, "hunter2", keys.LightScryptParams())
	require.NoError(t, err)
	assert.Equal(t, 3, ks.Version)
	assert.NotEmpty(t, ks.ID)
	assert.Equal(t, "aes-128-ctr", ks.Crypto.Cipher)

	mnemonic, err := keys.ReadKeystore(path, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, mnemonic)

	_, err = keys.ReadKeystore(path, "wrong")
	require.ErrorIs(t, err, keys.ErrKeystorePassword)

	_, err = keys.WriteKeystore(path, testMnemonic, "hunter2", keys.LightScryptParams())
	require.Error(t, err)
}

func TestDecryptRejectsUnknownFormat(t *testing.T) {
	ks, err := keys.EncryptMnemonic(testMnemonic, "pw", keys.LightScryptParams())
	require.NoError(t, err)

	ks.Crypto.KDF = "pbkdf2"
	_, err = keys.DecryptMnemonic(ks, "pw")
	require.Error(t, err)
}
