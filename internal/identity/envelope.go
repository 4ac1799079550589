package identity

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	seedEnvelopeVersion = 1
	seedArgonTime       = uint32(2)
	seedArgonMemKB      = uint32(64 * 1024)
	seedArgonThreads    = uint8(1)
)

// EncryptedSeedEnvelope is the at-rest form of a mnemonic: argon2id-derived
// key, XChaCha20-Poly1305 sealed. KDF parameters travel with the envelope so
// old exports stay readable after defaults change.
type EncryptedSeedEnvelope struct {
	Version     uint32 `json:"version"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

func EncryptSeed(seed []byte, password []byte) (*EncryptedSeedEnvelope, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := argon2.IDKey(password, salt, seedArgonTime, seedArgonMemKB, seedArgonThreads, chacha20poly1305.KeySize)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	ciphertext := aead.Seal(nil, nonce, seed, nil)
	return &EncryptedSeedEnvelope{
		Version:     seedEnvelopeVersion,
		KDF:         "argon2id",
		KDFTime:     seedArgonTime,
		KDFMemoryKB: seedArgonMemKB,
		KDFThreads:  seedArgonThreads,
		Salt:        salt,
		Nonce:       nonce,
		Ciphertext:  ciphertext,
	}, nil
}

func DecryptSeed(env *EncryptedSeedEnvelope, password []byte) ([]byte, error) {
	if env.Version != seedEnvelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}
	if env.KDF != "argon2id" {
		return nil, fmt.Errorf("unsupported kdf: %s", env.KDF)
	}
	key := argon2.IDKey(password, env.Salt, env.KDFTime, env.KDFMemoryKB, env.KDFThreads, chacha20poly1305.KeySize)
	defer zeroBytes(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
