package keys

import "github.com/ethereum/go-ethereum/common"

// SeedManager holds the BIP39 seed the host derives its accounts from.
type SeedManager interface {
	// Initialize derives the seed from mnemonic and passphrase
	Initialize(mnemonic string, passphrase string) error

	// GetSeed returns a copy of the seed, nil before Initialize
	GetSeed() []byte

	// IsInitialized reports whether a seed is loaded
	IsInitialized() bool

	// Clear wipes the seed from memory
	Clear()
}

// Account is one derived host account.
type Account struct {
	Address common.Address
	Path    string
}
