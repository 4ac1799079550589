// Package subaccount implements delegated access: fixed 36-byte tokens an
// owner signs to grant a bounded-permission key access to its records, plus
// the authority that issues them and assembles delegated requests.
package subaccount

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"pkmsg/go-client/internal/identity"
)

// TokenSize is the exact encoded token length, independent of permissions:
// prefix(1) || permissions(1) || reserved(2) || key(32).
const TokenSize = 36

// Permission is one bit of the token's permission mask. The store tests
// membership with bitwise AND, never equality, so composites are valid.
type Permission byte

const (
	PermissionRead      Permission = 0x01
	PermissionWrite     Permission = 0x02
	PermissionDelete    Permission = 0x04
	PermissionAnyPrefix Permission = 0x08
)

var (
	ErrMalformedToken       = errors.New("malformed subaccount token")
	ErrReservedBytesNonZero = errors.New("subaccount token reserved bytes are not zero")
)

// Token is the decoded form of a delegation token.
type Token struct {
	Prefix          byte
	Permissions     Permission
	TargetPublicKey []byte
}

// Encode lays out the 36-byte wire form. Reserved bytes are always zero on
// creation.
func Encode(prefix byte, permissions Permission, targetPublicKey []byte) ([]byte, error) {
	if len(targetPublicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: got %d", identity.ErrInvalidKeyLength, len(targetPublicKey))
	}
	token := make([]byte, TokenSize)
	token[0] = prefix
	token[1] = byte(permissions)
	copy(token[4:], targetPublicKey)
	return token, nil
}

// Decode parses a token, rejecting nonzero reserved bytes.
func Decode(raw []byte) (Token, error) {
	return decode(raw, true)
}

// DecodeLenient parses a token, ignoring the reserved bytes. Only for
// consuming tokens from peers that predate the zero-reserved rule.
func DecodeLenient(raw []byte) (Token, error) {
	return decode(raw, false)
}

func decode(raw []byte, strict bool) (Token, error) {
	if len(raw) != TokenSize {
		return Token{}, fmt.Errorf("%w: length %d, want %d", ErrMalformedToken, len(raw), TokenSize)
	}
	if strict && (raw[2] != 0 || raw[3] != 0) {
		return Token{}, ErrReservedBytesNonZero
	}
	return Token{
		Prefix:          raw[0],
		Permissions:     Permission(raw[1]),
		TargetPublicKey: append([]byte(nil), raw[4:]...),
	}, nil
}

// HasPermission reports whether every bit of flag is present in permissions.
func HasPermission(permissions, flag Permission) bool {
	return permissions&flag == flag
}

// ValidForPrefix reports whether the token may act on identifiers carrying
// prefix. AnyPrefix relaxes the match requirement.
func (t Token) ValidForPrefix(prefix byte) bool {
	if HasPermission(t.Permissions, PermissionAnyPrefix) {
		return true
	}
	return t.Prefix == prefix
}
