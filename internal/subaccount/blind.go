package subaccount

import (
	"crypto/ed25519"
	"fmt"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/blake2b"

	"pkmsg/go-client/internal/identity"
)

const blindFactorDomain = "pkmsg/subaccount/blind/v1"

// BlindingFactor derives k = H(owner || target) mod L. Both sides of a
// delegation can recompute it from public keys alone, but a store observing
// only the token cannot link the blinded key back to target.
func BlindingFactor(ownerPublicKey, targetPublicKey ed25519.PublicKey) (*edwards25519.Scalar, error) {
	if len(ownerPublicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: owner key %d bytes", identity.ErrInvalidKeyLength, len(ownerPublicKey))
	}
	if len(targetPublicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: target key %d bytes", identity.ErrInvalidKeyLength, len(targetPublicKey))
	}
	h, err := blake2b.New512(nil)
	if err != nil {
		return nil, err
	}
	h.Write([]byte(blindFactorDomain))
	h.Write(ownerPublicKey)
	h.Write(targetPublicKey)
	return edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))
}

// BlindPublicKey computes Z = [k]A for the target's public point A.
func BlindPublicKey(factor *edwards25519.Scalar, targetPublicKey ed25519.PublicKey) ([]byte, error) {
	if len(targetPublicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: got %d", identity.ErrInvalidKeyLength, len(targetPublicKey))
	}
	a, err := new(edwards25519.Point).SetBytes(targetPublicKey)
	if err != nil {
		return nil, fmt.Errorf("not a valid ed25519 point: %w", err)
	}
	return new(edwards25519.Point).ScalarMult(factor, a).Bytes(), nil
}
