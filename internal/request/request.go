// Package request assembles signed operation descriptors: the store method
// name plus the full parameter object, with the signature and identifier
// fields filled in for whichever principal is signing.
//
// Each request shape is an explicit type: an Owner signs as the account
// (plain or session-identified, fixed at account construction), a Delegate
// signs with its own key under a certificate. There is no conditional field
// merging; every shape has a fixed field set.
package request

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"pkmsg/go-client/internal/canonical"
	"pkmsg/go-client/internal/identity"
	"pkmsg/go-client/internal/metrics"
	"pkmsg/go-client/internal/platform/ratelimiter"
	"pkmsg/go-client/internal/signer"
	"pkmsg/go-client/internal/subaccount"
	"pkmsg/go-client/pkg/models"
)

var ErrThrottled = errors.New("signing rate limit exceeded for identifier")

// Assembler builds descriptors for one network. Immutable after
// construction; safe for concurrent use.
type Assembler struct {
	authority *subaccount.Authority
	throttle  *ratelimiter.SignThrottle
	now       func() time.Time
}

// NewAssembler wires the delegation authority and an optional throttle
// (nil disables throttling).
func NewAssembler(authority *subaccount.Authority, throttle *ratelimiter.SignThrottle) *Assembler {
	return &Assembler{authority: authority, throttle: throttle, now: time.Now}
}

// Principal is whoever signs a request: the account owner or a delegate.
type Principal interface {
	authorize(a *Assembler, message []byte) (map[string]any, error)
	throttleKey() string
}

// Owner signs as the account itself.
type Owner struct {
	Account *identity.Account
}

func (o Owner) authorize(_ *Assembler, message []byte) (map[string]any, error) {
	handle, err := o.Account.Handle()
	if err != nil {
		return nil, err
	}
	sig, err := signer.SignBase64(o.Account.Keys.PrivateKey, message)
	if err != nil {
		return nil, err
	}
	if o.Account.SessionIdentified {
		auth := models.SessionAuth{
			PubKey:        handle.Hex(),
			PubKeyEd25519: hex.EncodeToString(o.Account.Keys.PublicKey),
			Signature:     sig,
		}
		return map[string]any{
			"pubkey":         auth.PubKey,
			"pubkey_ed25519": auth.PubKeyEd25519,
			"signature":      auth.Signature,
		}, nil
	}
	auth := models.PlainAuth{PubKey: handle.Hex(), Signature: sig}
	return map[string]any{
		"pubkey":    auth.PubKey,
		"signature": auth.Signature,
	}, nil
}

func (o Owner) throttleKey() string {
	handle, err := o.Account.Handle()
	if err != nil {
		return ""
	}
	return handle.Hex()
}

// Delegate signs with its own key, attaching the owner's certificate.
type Delegate struct {
	OwnerHandle    identity.PublicKeyHandle
	OwnerPublicKey ed25519.PublicKey
	Keys           *identity.KeyPair
	Grant          subaccount.Delegation
}

func (d Delegate) authorize(a *Assembler, message []byte) (map[string]any, error) {
	auth, err := a.authority.AssembleDelegatedRequest(d.OwnerHandle, d.OwnerPublicKey, d.Keys, d.Grant, message)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"pubkey":         auth.PubKey,
		"signature":      auth.Signature,
		"subaccount":     auth.Subaccount,
		"subaccount_sig": auth.SubaccountSig,
	}, nil
}

func (d Delegate) throttleKey() string {
	return d.OwnerHandle.Hex()
}

type StoreParams struct {
	Namespace    int
	Data         []byte
	TTL          int64 // ms
	SigTimestamp int64 // ms
}

type RetrieveParams struct {
	Namespace int
	LastHash  string
	Timestamp int64 // ms
}

type DeleteParams struct {
	MessageHashes []string
}

type DeleteAllParams struct {
	Namespace     int
	AllNamespaces bool
	Timestamp     int64 // ms
}

type DeleteBeforeParams struct {
	Namespace     int
	AllNamespaces bool
	Before        int64 // ms
}

type ExpireParams struct {
	MessageHashes []string
	Expiry        int64 // ms
	Shorten       bool
	Extend        bool
}

type ExpireAllParams struct {
	Namespace int
	Expiry    int64 // ms
}

type GetExpiriesParams struct {
	MessageHashes []string
	Timestamp     int64 // ms
}

func (a *Assembler) Store(p Principal, params StoreParams) (models.OperationDescriptor, error) {
	fields := map[string]any{
		// The body always names the namespace, even though the signed
		// bytes omit it when zero.
		"namespace": params.Namespace,
		"timestamp": params.SigTimestamp,
	}
	if params.TTL > 0 {
		fields["ttl"] = params.TTL
	}
	if len(params.Data) > 0 {
		fields["data"] = base64.StdEncoding.EncodeToString(params.Data)
	}
	cp := canonical.Params{Namespace: params.Namespace, Timestamp: params.SigTimestamp}
	return a.assemble(canonical.KindStore, cp, p, fields)
}

func (a *Assembler) Retrieve(p Principal, params RetrieveParams) (models.OperationDescriptor, error) {
	fields := map[string]any{
		"namespace": params.Namespace,
		"timestamp": params.Timestamp,
	}
	if params.LastHash != "" {
		fields["last_hash"] = params.LastHash
	}
	cp := canonical.Params{Namespace: params.Namespace, Timestamp: params.Timestamp}
	return a.assemble(canonical.KindRetrieve, cp, p, fields)
}

func (a *Assembler) Delete(p Principal, params DeleteParams) (models.OperationDescriptor, error) {
	fields := map[string]any{
		"messages": append([]string(nil), params.MessageHashes...),
	}
	cp := canonical.Params{MessageHashes: params.MessageHashes}
	return a.assemble(canonical.KindDelete, cp, p, fields)
}

func (a *Assembler) DeleteAll(p Principal, params DeleteAllParams) (models.OperationDescriptor, error) {
	fields := map[string]any{
		"namespace": namespaceField(params.Namespace, params.AllNamespaces),
		"timestamp": params.Timestamp,
	}
	cp := canonical.Params{Namespace: params.Namespace, AllNamespaces: params.AllNamespaces, Timestamp: params.Timestamp}
	return a.assemble(canonical.KindDeleteAll, cp, p, fields)
}

func (a *Assembler) DeleteBefore(p Principal, params DeleteBeforeParams) (models.OperationDescriptor, error) {
	fields := map[string]any{
		"namespace": namespaceField(params.Namespace, params.AllNamespaces),
		"before":    params.Before,
	}
	cp := canonical.Params{Namespace: params.Namespace, AllNamespaces: params.AllNamespaces, Timestamp: params.Before}
	return a.assemble(canonical.KindDeleteBefore, cp, p, fields)
}

func (a *Assembler) Expire(p Principal, params ExpireParams) (models.OperationDescriptor, error) {
	fields := map[string]any{
		"messages": append([]string(nil), params.MessageHashes...),
		"expiry":   params.Expiry,
	}
	if params.Shorten {
		fields["shorten"] = true
	}
	if params.Extend {
		fields["extend"] = true
	}
	cp := canonical.Params{MessageHashes: params.MessageHashes, Expiry: params.Expiry, Shorten: params.Shorten, Extend: params.Extend}
	return a.assemble(canonical.KindExpireMessages, cp, p, fields)
}

func (a *Assembler) ExpireAll(p Principal, params ExpireAllParams) (models.OperationDescriptor, error) {
	fields := map[string]any{
		"namespace": params.Namespace,
		"expiry":    params.Expiry,
	}
	cp := canonical.Params{Namespace: params.Namespace, Expiry: params.Expiry}
	return a.assemble(canonical.KindExpireAll, cp, p, fields)
}

func (a *Assembler) GetExpiries(p Principal, params GetExpiriesParams) (models.OperationDescriptor, error) {
	fields := map[string]any{
		"messages":  append([]string(nil), params.MessageHashes...),
		"timestamp": params.Timestamp,
	}
	cp := canonical.Params{MessageHashes: params.MessageHashes, Timestamp: params.Timestamp}
	return a.assemble(canonical.KindGetExpiries, cp, p, fields)
}

// RevokeSubaccount is owner-only: the store ignores revocations not signed
// by the account key.
func (a *Assembler) RevokeSubaccount(owner Owner, tokenHex string) (models.OperationDescriptor, error) {
	fields := map[string]any{"revoke": tokenHex}
	cp := canonical.Params{TokenHex: tokenHex}
	return a.assemble(canonical.KindRevokeSubaccount, cp, owner, fields)
}

func (a *Assembler) UnrevokeSubaccount(owner Owner, timestamp int64, tokenHexes []string) (models.OperationDescriptor, error) {
	fields := map[string]any{
		"unrevoke":  append([]string(nil), tokenHexes...),
		"timestamp": timestamp,
	}
	cp := canonical.Params{Timestamp: timestamp, TokenHexes: tokenHexes}
	return a.assemble(canonical.KindUnrevokeSubaccount, cp, owner, fields)
}

func (a *Assembler) assemble(kind canonical.Kind, cp canonical.Params, p Principal, fields map[string]any) (models.OperationDescriptor, error) {
	if !a.throttle.Allow(p.throttleKey(), a.now()) {
		metrics.IncFailure("throttled")
		return models.OperationDescriptor{}, fmt.Errorf("%w: %s", ErrThrottled, p.throttleKey())
	}
	message, err := canonical.Build(kind, cp)
	if err != nil {
		metrics.IncFailure("canonical")
		return models.OperationDescriptor{}, err
	}
	auth, err := p.authorize(a, message)
	if err != nil {
		metrics.IncFailure("sign")
		return models.OperationDescriptor{}, err
	}
	for k, v := range auth {
		fields[k] = v
	}
	metrics.IncDescriptor(string(kind))
	return models.OperationDescriptor{Method: string(kind), Params: fields}, nil
}

// namespaceField renders the body-side namespace, where "all" is a literal
// string rather than an omission.
func namespaceField(namespace int, all bool) any {
	if all {
		return "all"
	}
	return namespace
}
