package keys

import (
	"crypto/sha512"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

// BIP39: seed = PBKDF2(mnemonic, "mnemonic" + passphrase, 2048, 64, SHA512)
const (
	pbkdf2Iterations = 2048
	pbkdf2KeyLength  = 64
)

type seedManager struct {
	mu   sync.RWMutex
	seed []byte
}

// NewSeedManager returns an empty seed manager.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewSeedManager() SeedManager {
	return &seedManager{}
}

func (m *seedManager) Initialize(mnemonic string, passphrase string) error {
	words := strings.Fields(mnemonic)
	if len(words) == 0 {
		return errors.New("mnemonic is empty")
	}

	seed := pbkdf2.Key(
		[]byte(strings.Join(words, " ")),
		[]byte("mnemonic"+passphrase),
		pbkdf2Iterations,
		pbkdf2KeyLength,
		sha512.New,
	)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.wipe()
	m.seed = seed

	return nil
}

func (m *seedManager) GetSeed() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.seed == nil {
		return nil
	}

	seedCopy := make([]byte, len(m.seed))
	copy(seedCopy, m.seed)
	return seedCopy
}

func (m *seedManager) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seed != nil
}

func (m *seedManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wipe()
}

func (m *seedManager) wipe() {
	for i := range m.seed {
		m.seed[i] = 0
	}
	m.seed = nil
}
