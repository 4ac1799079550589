package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"
)

// SeedSize is the only accepted length for a deterministic signing seed.
const SeedSize = 32

var (
	ErrInvalidSeedLength = errors.New("seed must be exactly 32 bytes")
	ErrInvalidKeyLength  = errors.New("public key must be exactly 32 bytes")
)

// KeyPair holds one principal's Ed25519 signing keys. Immutable after
// construction; safe for concurrent use.
type KeyPair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// Generate creates a key pair from the system random source.
func Generate() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &KeyPair{
		PublicKey:  append(ed25519.PublicKey(nil), pub...),
		PrivateKey: append(ed25519.PrivateKey(nil), priv...),
	}, nil
}

// FromSeed derives a key pair deterministically. The same seed always yields
// the same pair, which is what makes signed-request test vectors reproducible.
func FromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSeedLength, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &KeyPair{
		PublicKey:  append(ed25519.PublicKey(nil), pub...),
		PrivateKey: priv,
	}, nil
}

// Seed returns a copy of the 32-byte seed behind the private key.
func (k *KeyPair) Seed() []byte {
	return k.PrivateKey.Seed()
}

// DeriveX25519PublicKey maps an Ed25519 public key to the birationally
// equivalent X25519 public key. Pure and deterministic for any well-formed
// 32-byte input.
func DeriveX25519PublicKey(edPub ed25519.PublicKey) ([]byte, error) {
	if len(edPub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKeyLength, len(edPub))
	}
	p, err := new(edwards25519.Point).SetBytes(edPub)
	if err != nil {
		return nil, fmt.Errorf("not a valid ed25519 point: %w", err)
	}
	return p.BytesMontgomery(), nil
}

// DeriveX25519KeyPair derives the X25519 key pair tied to an Ed25519 seed.
// The public half matches DeriveX25519PublicKey of the Ed25519 public key;
// the private half is what callers use when they also need to decrypt.
func DeriveX25519KeyPair(seed []byte) (priv, pub []byte, err error) {
	if len(seed) != SeedSize {
		return nil, nil, fmt.Errorf("%w: got %d", ErrInvalidSeedLength, len(seed))
	}
	h := sha512.Sum512(seed)
	priv = append([]byte(nil), h[:32]...)
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64
	pub, err = curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}
