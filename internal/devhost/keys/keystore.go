package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"
)

const (
	keystoreVersion = 3
	cipherName      = "aes-128-ctr"
	kdfName         = "scrypt"

	saltLength = 32
	ivLength   = aes.BlockSize
)

// ErrKeystorePassword is returned when the MAC check fails.
var ErrKeystorePassword = errors.New("could not decrypt keystore with given password")

// KeystoreJSON is a mnemonic encrypted in the Ethereum keystore v3 layout.
//
//nolint:revive // KeystoreJSON is the standard name for Ethereum keystore JSON structure
type KeystoreJSON struct {
	Version int    `json:"version"`
	ID      string `json:"id"`
	Crypto  struct {
		Ciphertext   string `json:"ciphertext"`
		CipherParams struct {
			IV string `json:"iv"`
		} `json:"cipherparams"`
		Cipher    string `json:"cipher"`
		KDF       string `json:"kdf"`
		KDFParams struct {
			DKLen int    `json:"dklen"`
			Salt  string `json:"salt"`
			N     int    `json:"n"`
			R     int    `json:"r"`
			P     int    `json:"p"`
		} `json:"kdfparams"`
		MAC string `json:"mac"`
	} `json:"crypto"`
}

// ScryptParams are the KDF cost parameters.
type ScryptParams struct {
	N     int
	R     int
	P     int
	DKLen int
}

// StandardScryptParams match what wallets use for long-lived keystores.
func StandardScryptParams() ScryptParams {
	return ScryptParams{N: 1 << 18, R: 8, P: 1, DKLen: 32}
}

// LightScryptParams are cheap enough for tests and throwaway development keys.
func LightScryptParams() ScryptParams {
	return ScryptParams{N: 1 << 12, R: 8, P: 6, DKLen: 32}
}

// EncryptMnemonic encrypts mnemonic with password.
//
//nolint:varnamelen // iv is a common abbreviation for initialization vector
func EncryptMnemonic(mnemonic string, password string, params ScryptParams) (*KeystoreJSON, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "failed to generate salt")
	}
	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return nil, errors.Wrap(err, "failed to generate IV")
	}

	derivedKey, err := scrypt.Key([]byte(password), salt, params.N, params.R, params.P, params.DKLen)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive key")
	}

	ciphertext, err := aesCTR(derivedKey[:16], iv, []byte(mnemonic))
	if err != nil {
		return nil, errors.Wrap(err, "failed to encrypt mnemonic")
	}

	ks := &KeystoreJSON{Version: keystoreVersion, ID: uuid.NewString()}
	ks.Crypto.Ciphertext = hex.EncodeToString(ciphertext)
	ks.Crypto.CipherParams.IV = hex.EncodeToString(iv)
	ks.Crypto.Cipher = cipherName
	ks.Crypto.KDF = kdfName
	ks.Crypto.KDFParams.DKLen = params.DKLen
	ks.Crypto.KDFParams.Salt = hex.EncodeToString(salt)
	ks.Crypto.KDFParams.N = params.N
	ks.Crypto.KDFParams.R = params.R
	ks.Crypto.KDFParams.P = params.P
	ks.Crypto.MAC = hex.EncodeToString(crypto.Keccak256(derivedKey[16:32], ciphertext))

	return ks, nil
}

// DecryptMnemonic recovers the mnemonic from ks.
//
//nolint:varnamelen // iv is a common abbreviation for initialization vector
func DecryptMnemonic(ks *KeystoreJSON, password string) (string, error) {
	if ks.Version != keystoreVersion || ks.Crypto.Cipher != cipherName || ks.Crypto.KDF != kdfName {
		return "", errors.Errorf("unsupported keystore: version %d, cipher %q, kdf %q", ks.Version, ks.Crypto.Cipher, ks.Crypto.KDF)
	}

	salt, err := hex.DecodeString(ks.Crypto.KDFParams.Salt)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode salt")
	}
	iv, err := hex.DecodeString(ks.Crypto.CipherParams.IV)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode IV")
	}
	ciphertext, err := hex.DecodeString(ks.Crypto.Ciphertext)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode ciphertext")
	}
	mac, err := hex.DecodeString(ks.Crypto.MAC)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode MAC")
	}

	params := ks.Crypto.KDFParams
	if params.DKLen < 32 {
		return "", errors.Errorf("derived key length %d is too short", params.DKLen)
	}

	derivedKey, err := scrypt.Key([]byte(password), salt, params.N, params.R, params.P, params.DKLen)
	if err != nil {
		return "", errors.Wrap(err, "failed to derive key")
	}

	if subtle.ConstantTimeCompare(crypto.Keccak256(derivedKey[16:32], ciphertext), mac) != 1 {
		return "", ErrKeystorePassword
	}

	plaintext, err := aesCTR(derivedKey[:16], iv, ciphertext)
	if err != nil {
		return "", errors.Wrap(err, "failed to decrypt mnemonic")
	}

	return string(plaintext), nil
}

// ReadKeystore loads and decrypts a keystore file.
func ReadKeystore(path string, password string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read keystore %s", path)
	}

	var ks KeystoreJSON
	if err := json.Unmarshal(data, &ks); err != nil {
		return "", errors.Wrapf(err, "failed to decode keystore %s", path)
	}

	return DecryptMnemonic(&ks, password)
}

// WriteKeystore encrypts mnemonic into a new file at path. Existing files are not
// overwritten.
func WriteKeystore(path string, mnemonic string, password string, params ScryptParams) (*KeystoreJSON, error) {
	ks, err := EncryptMnemonic(mnemonic, password, params)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode keystore")
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create keystore %s", path)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return nil, errors.Wrapf(err, "failed to write keystore %s", path)
	}

	return ks, nil
}

// AES-128-CTR is symmetric; the same call encrypts and decrypts.
//
//nolint:varnamelen // iv is a common abbreviation for initialization vector
func aesCTR(key []byte, iv []byte, in []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cipher")
	}

	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)

	return out, nil
}
