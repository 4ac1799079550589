package signer

import (
	"crypto/ed25519"
	"crypto/sha512"
	"fmt"

	"filippo.io/edwards25519"
)

const blindedNonceDomain = "pkmsg/blinded-sign/nonce/v1"

// BlindedKeyPair signs with the scalar s = factor * a mod L, where a is the
// clamped secret scalar behind an Ed25519 seed. Signatures verify under the
// blinded public key Z = [s]B with standard Ed25519 verification, so the
// store never learns the unblinded key.
type BlindedKeyPair struct {
	scalar    *edwards25519.Scalar
	publicKey []byte
}

// NewBlindedKeyPair blinds the key pair behind seed by factor.
func NewBlindedKeyPair(seed []byte, factor *edwards25519.Scalar) (*BlindedKeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	if factor == nil {
		return nil, fmt.Errorf("blinding factor is required")
	}
	h := sha512.Sum512(seed)
	a, err := edwards25519.NewScalar().SetBytesWithClamping(h[:32])
	if err != nil {
		return nil, err
	}
	s := edwards25519.NewScalar().Multiply(factor, a)
	z := new(edwards25519.Point).ScalarBaseMult(s)
	return &BlindedKeyPair{scalar: s, publicKey: z.Bytes()}, nil
}

// PublicKey returns the blinded public key Z.
func (b *BlindedKeyPair) PublicKey() []byte {
	return append([]byte(nil), b.publicKey...)
}

// Sign produces an Ed25519-compatible signature over message. Deterministic:
// the nonce is derived from the blinded scalar and the message, never from
// randomness.
func (b *BlindedKeyPair) Sign(message []byte) []byte {
	nh := sha512.New()
	nh.Write([]byte(blindedNonceDomain))
	nh.Write(b.scalar.Bytes())
	nh.Write(message)
	r, err := edwards25519.NewScalar().SetUniformBytes(nh.Sum(nil))
	if err != nil {
		// sha512 output is always 64 bytes; SetUniformBytes cannot fail here.
		panic(err)
	}
	bigR := new(edwards25519.Point).ScalarBaseMult(r)

	ch := sha512.New()
	ch.Write(bigR.Bytes())
	ch.Write(b.publicKey)
	ch.Write(message)
	c, err := edwards25519.NewScalar().SetUniformBytes(ch.Sum(nil))
	if err != nil {
		panic(err)
	}

	s := edwards25519.NewScalar().MultiplyAdd(c, b.scalar, r)

	sig := make([]byte, 0, ed25519.SignatureSize)
	sig = append(sig, bigR.Bytes()...)
	sig = append(sig, s.Bytes()...)
	return sig
}
