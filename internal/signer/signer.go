// Package signer wraps Ed25519 signing for operation descriptors. Signatures
// travel base64-encoded; verification is the store's job, but Verify is
// provided for tests and local sanity checks.
package signer

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
)

// Sign produces the 64-byte Ed25519 signature over message. Deterministic:
// the same key and message always yield the same signature.
func Sign(priv ed25519.PrivateKey, message []byte) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	return ed25519.Sign(priv, message), nil
}

// SignBase64 signs and encodes in the descriptor wire form.
func SignBase64(priv ed25519.PrivateKey, message []byte) (string, error) {
	sig, err := Sign(priv, message)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify reports whether signature is valid. Malformed keys or signatures
// verify as false rather than erroring.
func Verify(pub ed25519.PublicKey, message, signature []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, message, signature)
}
