package identity

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func TestFromSeedDeterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, SeedSize)
	k1, err := FromSeed(seed)
	if err != nil {
		t.Fatalf("from seed 1 failed: %v", err)
	}
	k2, err := FromSeed(seed)
	if err != nil {
		t.Fatalf("from seed 2 failed: %v", err)
	}
	if !bytes.Equal(k1.PublicKey, k2.PublicKey) {
		t.Fatal("public keys should be deterministic")
	}
	if !bytes.Equal(k1.PrivateKey, k2.PrivateKey) {
		t.Fatal("private keys should be deterministic")
	}
}

func TestFromSeedRejectsWrongLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		if _, err := FromSeed(make([]byte, n)); !errors.Is(err, ErrInvalidSeedLength) {
			t.Fatalf("expected ErrInvalidSeedLength for %d bytes, got %v", n, err)
		}
	}
}

func TestGenerateProducesDistinctPairs(t *testing.T) {
	k1, err := Generate()
	if err != nil {
		t.Fatalf("generate 1 failed: %v", err)
	}
	k2, err := Generate()
	if err != nil {
		t.Fatalf("generate 2 failed: %v", err)
	}
	if bytes.Equal(k1.PublicKey, k2.PublicKey) {
		t.Fatal("random pairs should differ")
	}
}

func TestX25519DerivationsAgree(t *testing.T) {
	seed := bytes.Repeat([]byte{0x07}, SeedSize)
	keys, err := FromSeed(seed)
	if err != nil {
		t.Fatalf("from seed failed: %v", err)
	}
	fromPub, err := DeriveX25519PublicKey(keys.PublicKey)
	if err != nil {
		t.Fatalf("derive from public failed: %v", err)
	}
	_, fromSeed, err := DeriveX25519KeyPair(seed)
	if err != nil {
		t.Fatalf("derive pair failed: %v", err)
	}
	if !bytes.Equal(fromPub, fromSeed) {
		t.Fatalf("derivations disagree: %x vs %x", fromPub, fromSeed)
	}
	if len(fromPub) != 32 {
		t.Fatalf("x25519 key must be 32 bytes, got %d", len(fromPub))
	}
}

func TestDeriveX25519PublicKeyRejectsWrongLength(t *testing.T) {
	if _, err := DeriveX25519PublicKey(make([]byte, 31)); !errors.Is(err, ErrInvalidKeyLength) {
		t.Fatalf("expected ErrInvalidKeyLength, got %v", err)
	}
}

func TestHandleHexRoundTrip(t *testing.T) {
	keys, err := Generate()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	h, err := NewHandle(NetworkPrefixMainnet, keys.PublicKey)
	if err != nil {
		t.Fatalf("new handle failed: %v", err)
	}
	s := h.Hex()
	if len(s) != HandleHexLen {
		t.Fatalf("expected %d hex chars, got %d", HandleHexLen, len(s))
	}
	if !strings.HasPrefix(s, "05") {
		t.Fatalf("mainnet identifier should start with 05: %s", s)
	}
	parsed, err := ParseHandle(s)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.Prefix != NetworkPrefixMainnet || !bytes.Equal(parsed.Key, keys.PublicKey) {
		t.Fatal("parsed handle should round-trip")
	}
}

func TestSessionIdentifiedAccountHandle(t *testing.T) {
	seed := bytes.Repeat([]byte{0x11}, SeedSize)
	keys, err := FromSeed(seed)
	if err != nil {
		t.Fatalf("from seed failed: %v", err)
	}
	acct := &Account{Keys: keys, Prefix: NetworkPrefixMainnet, SessionIdentified: true}
	h, err := acct.Handle()
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	x, err := DeriveX25519PublicKey(keys.PublicKey)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	want := "05" + hex.EncodeToString(x)
	if h.Hex() != want {
		t.Fatalf("expected %s, got %s", want, h.Hex())
	}
}

func TestFingerprintStableAndVerifiable(t *testing.T) {
	pub := ed25519.PublicKey(bytes.Repeat([]byte{0x33}, 32))
	fp1, err := Fingerprint(pub)
	if err != nil {
		t.Fatalf("fingerprint failed: %v", err)
	}
	fp2, _ := Fingerprint(pub)
	if fp1 != fp2 {
		t.Fatal("fingerprint should be deterministic")
	}
	if !strings.HasPrefix(fp1, "pk1") {
		t.Fatalf("fingerprint should start with pk1: %s", fp1)
	}
	ok, err := VerifyFingerprint(fp1, pub)
	if err != nil || !ok {
		t.Fatalf("fingerprint should verify, ok=%v err=%v", ok, err)
	}
}
