package subaccount

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"

	"pkmsg/go-client/internal/canonical"
	"pkmsg/go-client/internal/identity"
	"pkmsg/go-client/internal/signer"
	"pkmsg/go-client/pkg/models"
)

var (
	ErrInvalidDelegation  = errors.New("delegation endorsement does not verify")
	ErrDelegationMismatch = errors.New("delegation does not cover this key")
	ErrPrefixMismatch     = errors.New("token prefix does not cover this identifier")
)

// Config fixes how an Authority issues tokens. It is set once at
// construction; there is no mode toggling afterwards.
//
// Unblinded embeds the delegate's real key in the token instead of the
// blinded derivation. That makes the delegate linkable by anyone who sees
// the token, so it exists only for interop tests against stores that do not
// verify blinded keys.
type Config struct {
	NetworkPrefix byte
	Unblinded     bool
}

// Authority issues delegation certificates on behalf of an owner and
// assembles the delegate's side of a request. Stateless and safe for
// concurrent use.
type Authority struct {
	cfg Config
}

func NewAuthority(cfg Config) *Authority {
	return &Authority{cfg: cfg}
}

// Delegation is a token plus the owner's endorsement over its raw bytes.
// The delegate attaches it verbatim to every request until revoked.
type Delegation struct {
	Token          []byte
	OwnerSignature []byte
}

// TokenHex renders the 72-character wire form.
func (d Delegation) TokenHex() string {
	return hex.EncodeToString(d.Token)
}

func (d Delegation) OwnerSignatureBase64() string {
	return base64.StdEncoding.EncodeToString(d.OwnerSignature)
}

// CreateDelegation builds and endorses a token granting permissions to the
// target key. The owner signs only the token bytes, never any operation.
func (a *Authority) CreateDelegation(owner *identity.KeyPair, targetPublicKey ed25519.PublicKey, permissions Permission) (Delegation, error) {
	embedded, err := a.embeddedKey(owner.PublicKey, targetPublicKey)
	if err != nil {
		return Delegation{}, err
	}
	token, err := Encode(a.cfg.NetworkPrefix, permissions, embedded)
	if err != nil {
		return Delegation{}, err
	}
	sig, err := signer.Sign(owner.PrivateKey, token)
	if err != nil {
		return Delegation{}, err
	}
	return Delegation{Token: token, OwnerSignature: sig}, nil
}

// VerifyDelegation checks the owner's endorsement over the token bytes.
func VerifyDelegation(ownerPublicKey ed25519.PublicKey, d Delegation) bool {
	return signer.Verify(ownerPublicKey, d.Token, d.OwnerSignature)
}

// AssembleDelegatedRequest signs an operation's canonical message with the
// delegate's key and attaches the certificate. The owner's signature covers
// only the grant; the operation signature is entirely the delegate's.
func (a *Authority) AssembleDelegatedRequest(ownerHandle identity.PublicKeyHandle, ownerPublicKey ed25519.PublicKey, delegate *identity.KeyPair, d Delegation, message []byte) (models.DelegatedAuth, error) {
	if !VerifyDelegation(ownerPublicKey, d) {
		return models.DelegatedAuth{}, ErrInvalidDelegation
	}
	token, err := Decode(d.Token)
	if err != nil {
		return models.DelegatedAuth{}, err
	}
	if !token.ValidForPrefix(ownerHandle.Prefix) {
		return models.DelegatedAuth{}, ErrPrefixMismatch
	}
	expected, err := a.embeddedKey(ownerPublicKey, delegate.PublicKey)
	if err != nil {
		return models.DelegatedAuth{}, err
	}
	if !bytes.Equal(token.TargetPublicKey, expected) {
		return models.DelegatedAuth{}, ErrDelegationMismatch
	}

	var opSig []byte
	if a.cfg.Unblinded {
		opSig, err = signer.Sign(delegate.PrivateKey, message)
		if err != nil {
			return models.DelegatedAuth{}, err
		}
	} else {
		factor, ferr := BlindingFactor(ownerPublicKey, delegate.PublicKey)
		if ferr != nil {
			return models.DelegatedAuth{}, ferr
		}
		blinded, berr := signer.NewBlindedKeyPair(delegate.Seed(), factor)
		if berr != nil {
			return models.DelegatedAuth{}, berr
		}
		opSig = blinded.Sign(message)
	}

	return models.DelegatedAuth{
		PubKey:        ownerHandle.Hex(),
		Signature:     base64.StdEncoding.EncodeToString(opSig),
		Subaccount:    d.TokenHex(),
		SubaccountSig: d.OwnerSignatureBase64(),
	}, nil
}

// SignRevocation signs the canonical revoke message for a token. The store
// enforces the resulting revocation list; this only produces the signature.
func (a *Authority) SignRevocation(owner *identity.KeyPair, tokenHex string) (message []byte, signatureBase64 string, err error) {
	message, err = canonical.Build(canonical.KindRevokeSubaccount, canonical.Params{TokenHex: tokenHex})
	if err != nil {
		return nil, "", err
	}
	signatureBase64, err = signer.SignBase64(owner.PrivateKey, message)
	if err != nil {
		return nil, "", err
	}
	return message, signatureBase64, nil
}

// SignUnrevocation signs the canonical unrevoke message for a batch of
// previously revoked tokens.
func (a *Authority) SignUnrevocation(owner *identity.KeyPair, timestamp int64, tokenHexes []string) (message []byte, signatureBase64 string, err error) {
	message, err = canonical.Build(canonical.KindUnrevokeSubaccount, canonical.Params{Timestamp: timestamp, TokenHexes: tokenHexes})
	if err != nil {
		return nil, "", err
	}
	signatureBase64, err = signer.SignBase64(owner.PrivateKey, message)
	if err != nil {
		return nil, "", err
	}
	return message, signatureBase64, nil
}

func (a *Authority) embeddedKey(ownerPublicKey, targetPublicKey ed25519.PublicKey) ([]byte, error) {
	if a.cfg.Unblinded {
		if len(targetPublicKey) != ed25519.PublicKeySize {
			return nil, identity.ErrInvalidKeyLength
		}
		return append([]byte(nil), targetPublicKey...), nil
	}
	factor, err := BlindingFactor(ownerPublicKey, targetPublicKey)
	if err != nil {
		return nil, err
	}
	return BlindPublicKey(factor, targetPublicKey)
}
