package keys

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// ErrUnknownAccount is returned when asked to sign for an address the keyring
// does not hold.
var ErrUnknownAccount = errors.New("unknown account")

// Keyring holds the private keys of the first n accounts of a seed.
type Keyring struct {
	accounts []Account
	keys     map[common.Address]*ecdsa.PrivateKey
}

// NewKeyring derives count accounts from the seed held by seeds.
func NewKeyring(seeds SeedManager, count int) (*Keyring, error) {
	if !seeds.IsInitialized() {
		return nil, errors.New("seed manager is not initialized")
	}
	if count < 1 {
		return nil, errors.Errorf("account count must be positive, got %d", count)
	}

	seed := seeds.GetSeed()
	defer func() {
		for i := range seed {
			seed[i] = 0
		}
	}()

	k := &Keyring{
		accounts: make([]Account, 0, count),
		keys:     make(map[common.Address]*ecdsa.PrivateKey, count),
	}
	for i := range count {
		path := DerivationPath(i)
		key, err := DeriveKey(seed, path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive account %d", i)
		}

		address := crypto.PubkeyToAddress(key.PublicKey)
		k.accounts = append(k.accounts, Account{Address: address, Path: path})
		k.keys[address] = key
	}

	return k, nil
}

// Accounts returns the derived accounts in derivation order.
func (k *Keyring) Accounts() []Account {
	out := make([]Account, len(k.accounts))
	copy(out, k.accounts)
	return out
}

// Contains reports whether the keyring holds address.
func (k *Keyring) Contains(address common.Address) bool {
	_, ok := k.keys[address]
	return ok
}

// SignText signs data with the EIP-191 personal message prefix and returns the
// 65 byte signature with V in {27, 28}.
func (k *Keyring) SignText(address common.Address, data []byte) (hexutil.Bytes, error) {
	key, ok := k.keys[address]
	if !ok {
		return nil, errors.Wrap(ErrUnknownAccount, address.Hex())
	}

	sig, err := crypto.Sign(accounts.TextHash(data), key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign message")
	}
	sig[crypto.RecoveryIDOffset] += 27

	return sig, nil
}
