package models

import "time"

// Account is the client-visible identity summary: the human-readable
// fingerprint plus the raw signing key the store verifies against.
type Account struct {
	Fingerprint      string `json:"fingerprint"`
	SigningPublicKey []byte `json:"signing_public_key"`
	StoreID          string `json:"store_id"` // prefix + key, 66 hex chars
}

// PlainAuth authorizes a request for an Ed25519-identified record. The
// pubkey field carries the network prefix followed by the raw signing key.
type PlainAuth struct {
	PubKey    string `json:"pubkey"`    // 66 hex chars
	Signature string `json:"signature"` // base64 of 64 bytes
}

// SessionAuth authorizes a request whose record is indexed by the derived
// X25519 key. The server needs the raw Ed25519 key as well to check the
// signature, so both are always present in this shape.
type SessionAuth struct {
	PubKey        string `json:"pubkey"`         // prefix + X25519 key, 66 hex chars
	PubKeyEd25519 string `json:"pubkey_ed25519"` // raw Ed25519 key, 64 hex chars
	Signature     string `json:"signature"`
}

// DelegatedAuth authorizes a request made with a delegated key. PubKey is
// the owner's identifier; the signature is the delegate's own signature over
// the operation, while SubaccountSig is the owner's endorsement of the token.
type DelegatedAuth struct {
	PubKey        string `json:"pubkey"`
	Signature     string `json:"signature"`
	Subaccount    string `json:"subaccount"`     // 72 hex chars (36 bytes)
	SubaccountSig string `json:"subaccount_sig"` // base64, owner signature over token
}

// OperationDescriptor is the assembled, signed request: the store method
// name and the full parameter object the caller hands to its transport.
type OperationDescriptor struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// IssuedDelegation records a delegation certificate handed out by this
// client, for local bookkeeping and later revocation.
type IssuedDelegation struct {
	TokenHex        string    `json:"token_hex"` // 72 hex chars
	OwnerPublicKey  []byte    `json:"owner_public_key"`
	TargetPublicKey []byte    `json:"target_public_key"`
	Permissions     byte      `json:"permissions"`
	Blinded         bool      `json:"blinded"`
	OwnerSignature  []byte    `json:"owner_signature"`
	CreatedAt       time.Time `json:"created_at"`
	RevokedAt       time.Time `json:"revoked_at,omitzero"`
}
