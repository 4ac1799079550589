package identity

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"
)

const hkdfInfoSigning = "pkmsg/identity/signing/v1"

var (
	ErrInvalidMnemonic  = errors.New("invalid mnemonic")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrSeedNotAvailable = errors.New("seed is not available")
	ErrPasswordRequired = errors.New("password is required")
	ErrMnemonicRequired = errors.New("mnemonic is required")
	ErrPasswordLocked   = errors.New("password attempts are temporarily locked")
)

// SeedVault keeps the account mnemonic encrypted in memory and hands out
// derived key pairs. Repeated wrong passwords back off exponentially.
type SeedVault struct {
	mu             sync.RWMutex
	envelope       *EncryptedSeedEnvelope
	failedAttempts int
	lockedUntil    time.Time
	now            func() time.Time
}

func NewSeedVault() *SeedVault {
	return &SeedVault{now: time.Now}
}

func newSeedVaultWithClock(now func() time.Time) *SeedVault {
	return &SeedVault{now: now}
}

// Create generates a fresh mnemonic, stores it under password, and returns
// it together with the derived signing key pair.
func (v *SeedVault) Create(password string) (mnemonic string, keys *KeyPair, err error) {
	if strings.TrimSpace(password) == "" {
		return "", nil, ErrPasswordRequired
	}
	mnemonic, _, err = GenerateMnemonic()
	if err != nil {
		return "", nil, err
	}
	return v.Import(mnemonic, password)
}

// GenerateMnemonic creates a fresh 24-word mnemonic and the signing key pair
// it derives, without storing either.
func GenerateMnemonic() (string, *KeyPair, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", nil, err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", nil, err
	}
	seed, err := SigningSeedFromMnemonic(mnemonic)
	if err != nil {
		return "", nil, err
	}
	keys, err := FromSeed(seed)
	if err != nil {
		return "", nil, err
	}
	return mnemonic, keys, nil
}

// Import validates and stores an existing mnemonic, returning the signing
// key pair it derives. Same mnemonic always reproduces the same pair.
func (v *SeedVault) Import(mnemonic, password string) (normalizedMnemonic string, keys *KeyPair, err error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if mnemonic == "" {
		return "", nil, ErrMnemonicRequired
	}
	if strings.TrimSpace(password) == "" {
		return "", nil, ErrPasswordRequired
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return "", nil, ErrInvalidMnemonic
	}

	seed, err := SigningSeedFromMnemonic(mnemonic)
	if err != nil {
		return "", nil, err
	}
	keys, err = FromSeed(seed)
	if err != nil {
		return "", nil, err
	}
	env, err := EncryptSeed([]byte(mnemonic), []byte(password))
	if err != nil {
		return "", nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.envelope = env
	return mnemonic, keys, nil
}

// Export returns the stored mnemonic after checking password.
func (v *SeedVault) Export(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", ErrPasswordRequired
	}

	v.mu.Lock()
	env := v.envelope
	if err := v.ensureUnlocked(); err != nil {
		v.mu.Unlock()
		return "", err
	}
	v.mu.Unlock()
	if env == nil {
		return "", ErrSeedNotAvailable
	}

	plaintext, err := DecryptSeed(env, []byte(password))
	if err != nil {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.onFailedPasswordAttempt()
		return "", ErrInvalidPassword
	}
	v.mu.Lock()
	v.resetPasswordAttemptState()
	v.mu.Unlock()

	mnemonic := strings.TrimSpace(string(plaintext))
	if !bip39.IsMnemonicValid(mnemonic) {
		return "", fmt.Errorf("%w: corrupted mnemonic", ErrInvalidMnemonic)
	}
	return mnemonic, nil
}

func (v *SeedVault) ChangePassword(oldPassword, newPassword string) error {
	oldPassword = strings.TrimSpace(oldPassword)
	newPassword = strings.TrimSpace(newPassword)
	if oldPassword == "" || newPassword == "" {
		return ErrPasswordRequired
	}

	v.mu.Lock()
	env := v.envelope
	if err := v.ensureUnlocked(); err != nil {
		v.mu.Unlock()
		return err
	}
	v.mu.Unlock()
	if env == nil {
		return ErrSeedNotAvailable
	}

	mnemonicBytes, err := DecryptSeed(env, []byte(oldPassword))
	if err != nil {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.onFailedPasswordAttempt()
		return ErrInvalidPassword
	}

	newEnv, err := EncryptSeed(mnemonicBytes, []byte(newPassword))
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.envelope = newEnv
	v.resetPasswordAttemptState()
	return nil
}

func (v *SeedVault) ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(strings.TrimSpace(mnemonic))
}

func (v *SeedVault) ensureUnlocked() error {
	if v.lockedUntil.IsZero() {
		return nil
	}
	if v.now().Before(v.lockedUntil) {
		return ErrPasswordLocked
	}
	return nil
}

func (v *SeedVault) onFailedPasswordAttempt() {
	v.failedAttempts++
	backoff := failedAttemptBackoff(v.failedAttempts)
	v.lockedUntil = v.now().Add(backoff)
}

func (v *SeedVault) resetPasswordAttemptState() {
	v.failedAttempts = 0
	v.lockedUntil = time.Time{}
}

func failedAttemptBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	// 1s, 2s, 4s... up to 32s max.
	shift := attempt - 1
	if shift > 5 {
		shift = 5
	}
	return time.Second * time.Duration(1<<shift)
}

// SigningSeedFromMnemonic maps a BIP-39 mnemonic to the 32-byte signing
// seed, domain-separated so future derivations can coexist.
func SigningSeedFromMnemonic(mnemonic string) ([]byte, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seedBytes := bip39.NewSeed(mnemonic, "")
	reader := hkdf.New(sha256.New, seedBytes, nil, []byte(hkdfInfoSigning))
	out := make([]byte, SeedSize)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}
