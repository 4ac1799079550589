package identity

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestVaultCreateExportImport(t *testing.T) {
	vault := NewSeedVault()
	mnemonic, keys, err := vault.Create("pass-1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !vault.ValidateMnemonic(mnemonic) {
		t.Fatal("created mnemonic must be valid")
	}

	exported, err := vault.Export("pass-1")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if exported != mnemonic {
		t.Fatal("exported mnemonic should match created mnemonic")
	}

	other := NewSeedVault()
	_, imported, err := other.Import(mnemonic, "pass-2")
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if !bytes.Equal(keys.PublicKey, imported.PublicKey) {
		t.Fatal("importing same mnemonic should reproduce same signing key")
	}
}

func TestVaultInvalidInputs(t *testing.T) {
	vault := NewSeedVault()
	if _, err := vault.Export("p"); err == nil {
		t.Fatal("expected error exporting without stored seed")
	}
	if _, _, err := vault.Create(""); err == nil {
		t.Fatal("expected error for empty password")
	}
	if _, _, err := vault.Import("not a mnemonic", "p"); err == nil {
		t.Fatal("expected error for invalid mnemonic")
	}
}

func TestVaultChangePassword(t *testing.T) {
	vault := NewSeedVault()
	mnemonic, _, err := vault.Create("old-pass")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := vault.ChangePassword("old-pass", "new-pass"); err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	exported, err := vault.Export("new-pass")
	if err != nil {
		t.Fatalf("new password export failed: %v", err)
	}
	if exported != mnemonic {
		t.Fatal("mnemonic should stay unchanged after password change")
	}
	if _, err := vault.Export("old-pass"); err == nil {
		t.Fatal("expected old password to fail after password change")
	}
}

func TestVaultPasswordLockout(t *testing.T) {
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	vault := newSeedVaultWithClock(clock)

	if _, _, err := vault.Create("good-pass"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := vault.Export("wrong-pass"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	if _, err := vault.Export("wrong-pass"); !errors.Is(err, ErrPasswordLocked) {
		t.Fatalf("expected ErrPasswordLocked, got %v", err)
	}

	now = now.Add(2 * time.Second)
	if _, err := vault.Export("good-pass"); err != nil {
		t.Fatalf("expected unlock after backoff, got %v", err)
	}
}

func TestDecryptSeedRejectsMalformedEnvelope(t *testing.T) {
	env, err := EncryptSeed([]byte("seed-value"), []byte("password"))
	if err != nil {
		t.Fatalf("encrypt seed failed: %v", err)
	}

	malformed := *env
	malformed.Nonce = []byte{1, 2, 3}
	if _, err := DecryptSeed(&malformed, []byte("password")); err == nil {
		t.Fatal("expected error for malformed nonce")
	}
}

func TestDecryptSeedRejectsKDFDowngrade(t *testing.T) {
	env, err := EncryptSeed([]byte("seed-value"), []byte("password"))
	if err != nil {
		t.Fatalf("encrypt seed failed: %v", err)
	}

	downgraded := *env
	downgraded.KDFMemoryKB = 8 * 1024
	if _, err := DecryptSeed(&downgraded, []byte("password")); err == nil {
		t.Fatal("expected error for downgraded kdf policy")
	}
}
