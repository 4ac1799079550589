package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58/base58"
	"golang.org/x/crypto/blake2b"
)

// Network prefixes. Every store-facing identifier starts with exactly one of
// these bytes.
const (
	NetworkPrefixTestnet byte = 0x00
	NetworkPrefixMainnet byte = 0x05
)

// HandleHexLen is the length of a rendered identifier: 1 prefix byte plus a
// 32-byte key, hex encoded.
const HandleHexLen = 66

// PublicKeyHandle is the store-facing identifier for a record: a network
// prefix byte followed by the 32-byte key the store indexes by.
type PublicKeyHandle struct {
	Prefix byte
	Key    []byte
}

// NewHandle builds a handle over a 32-byte key.
func NewHandle(prefix byte, key []byte) (PublicKeyHandle, error) {
	if len(key) != ed25519.PublicKeySize {
		return PublicKeyHandle{}, fmt.Errorf("%w: got %d", ErrInvalidKeyLength, len(key))
	}
	return PublicKeyHandle{Prefix: prefix, Key: append([]byte(nil), key...)}, nil
}

// Hex renders the handle as its canonical 66-character form.
func (h PublicKeyHandle) Hex() string {
	return hex.EncodeToString(append([]byte{h.Prefix}, h.Key...))
}

// ParseHandle decodes a 66-character hex identifier.
func ParseHandle(s string) (PublicKeyHandle, error) {
	if len(s) != HandleHexLen {
		return PublicKeyHandle{}, fmt.Errorf("identifier must be %d hex chars, got %d", HandleHexLen, len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return PublicKeyHandle{}, fmt.Errorf("identifier is not hex: %w", err)
	}
	return PublicKeyHandle{Prefix: raw[0], Key: raw[1:]}, nil
}

// Account fixes how one principal identifies itself to the store: either by
// its raw Ed25519 key, or (SessionIdentified) by the derived X25519 key with
// the Ed25519 key carried alongside for verification. The choice is made at
// construction and never changes afterwards.
type Account struct {
	Keys              *KeyPair
	Prefix            byte
	SessionIdentified bool
}

// Handle returns the identifier the store indexes this account by.
func (a *Account) Handle() (PublicKeyHandle, error) {
	if a.SessionIdentified {
		x, err := DeriveX25519PublicKey(a.Keys.PublicKey)
		if err != nil {
			return PublicKeyHandle{}, err
		}
		return NewHandle(a.Prefix, x)
	}
	return NewHandle(a.Prefix, a.Keys.PublicKey)
}

// Fingerprint builds the short human-readable form of a signing key, used
// for display and logs, never on the wire.
func Fingerprint(signingPublicKey []byte) (string, error) {
	if len(signingPublicKey) != ed25519.PublicKeySize {
		return "", fmt.Errorf("%w: got %d", ErrInvalidKeyLength, len(signingPublicKey))
	}
	h := blake2b.Sum256(signingPublicKey)
	return "pk1" + base58.Encode(h[:]), nil
}

// VerifyFingerprint reports whether fingerprint matches the given key.
func VerifyFingerprint(fingerprint string, signingPublicKey []byte) (bool, error) {
	expected, err := Fingerprint(signingPublicKey)
	if err != nil {
		return false, err
	}
	return fingerprint == expected, nil
}
