package keys

import (
	"crypto/ecdsa"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"
)

// DerivationPath returns the BIP44 path of the index-th Ethereum account.
func DerivationPath(index int) string {
	return fmt.Sprintf("m/44'/60'/0'/0/%d", index)
}

// DeriveKey derives the private key at path from seed.
func DeriveKey(seed []byte, path string) (*ecdsa.PrivateKey, error) {
	indices, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create master key")
	}

	for _, index := range indices {
		key, err = key.NewChildKey(index)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive child key at index %d", index)
		}
	}

	privateKey, err := crypto.ToECDSA(key.Key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert to ECDSA private key")
	}

	return privateKey, nil
}

// parsePath turns "m/44'/60'/0'/0/1" into child indices, adding the hardened
// offset for segments ending in an apostrophe.
func parsePath(path string) ([]uint32, error) {
	segments := strings.Split(path, "/")
	if len(segments) == 0 || segments[0] != "m" {
		return nil, errors.Errorf("invalid derivation path: %q", path)
	}

	indices := make([]uint32, 0, len(segments)-1)
	for _, segment := range segments[1:] {
		hardened := strings.HasSuffix(segment, "'")
		segment = strings.TrimSuffix(segment, "'")

		index, err := strconv.ParseUint(segment, 10, 31)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid path segment %q", segment)
		}

		child := uint32(index)
		if hardened {
			child += bip32.FirstHardenedChild
		}
		indices = append(indices, child)
	}

	return indices, nil
}
