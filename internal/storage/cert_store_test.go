package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pkmsg/go-client/internal/securestore"
	"pkmsg/go-client/internal/testutil/fsperm"
	"pkmsg/go-client/pkg/models"
)

func testCert(tokenHex string) models.IssuedDelegation {
	return models.IssuedDelegation{
		TokenHex:        tokenHex,
		OwnerPublicKey:  []byte("owner-key-owner-key-owner-key-ow"),
		TargetPublicKey: []byte("target-key-target-key-target-ke!"),
		Permissions:     0x03,
		Blinded:         true,
		OwnerSignature:  []byte("sig"),
		CreatedAt:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCertStoreRecordRevokeUnrevoke(t *testing.T) {
	s := NewCertStore()
	cert := testCert("05aa")
	if err := s.Record(cert); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	revokedAt := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	got, err := s.Revoke("05aa", revokedAt)
	if err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if !got.RevokedAt.Equal(revokedAt) {
		t.Fatalf("revoked_at = %v", got.RevokedAt)
	}

	// A second revoke keeps the first timestamp.
	later, err := s.Revoke("05aa", revokedAt.Add(time.Hour))
	if err != nil {
		t.Fatalf("second revoke failed: %v", err)
	}
	if !later.RevokedAt.Equal(revokedAt) {
		t.Fatalf("revoke must be idempotent, got %v", later.RevokedAt)
	}

	if revoked := s.Revoked(); len(revoked) != 1 || revoked[0] != "05aa" {
		t.Fatalf("revoked list = %v", revoked)
	}

	cleared, err := s.Unrevoke([]string{"05aa", "unknown"})
	if err != nil {
		t.Fatalf("unrevoke failed: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("cleared = %d", cleared)
	}
	final, ok := s.Get("05aa")
	if !ok || !final.RevokedAt.IsZero() {
		t.Fatalf("expected cleared revocation, got %+v", final)
	}
}

func TestCertStoreRejectsTokenConflict(t *testing.T) {
	s := NewCertStore()
	cert := testCert("05bb")
	if err := s.Record(cert); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := s.Record(cert); err != nil {
		t.Fatalf("identical re-record should be a no-op: %v", err)
	}
	altered := cert
	altered.Permissions = 0x0F
	if err := s.Record(altered); !errors.Is(err, ErrCertConflict) {
		t.Fatalf("expected ErrCertConflict, got %v", err)
	}
}

func TestCertStoreRevokeUnknownToken(t *testing.T) {
	s := NewCertStore()
	if _, err := s.Revoke("dead", time.Now()); !errors.Is(err, ErrCertUnknown) {
		t.Fatalf("expected ErrCertUnknown, got %v", err)
	}
}

func TestCertStoreListOrdersByIssueTime(t *testing.T) {
	s := NewCertStore()
	older := testCert("05cc")
	older.CreatedAt = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	newer := testCert("05dd")
	newer.CreatedAt = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Record(newer); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := s.Record(older); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	list := s.List()
	if len(list) != 2 || list[0].TokenHex != "05cc" || list[1].TokenHex != "05dd" {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestPersistentCertStoreReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state", "certs.json")

	s, err := NewPersistentCertStore(path)
	if err != nil {
		t.Fatalf("new store failed: %v", err)
	}
	if err := s.Record(testCert("05ee")); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	fsperm.AssertPrivateDirPerm(t, filepath.Dir(path))

	reloaded, err := NewPersistentCertStore(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Count() != 1 {
		t.Fatalf("count after reload = %d", reloaded.Count())
	}
	got, ok := reloaded.Get("05ee")
	if !ok || got.Permissions != 0x03 || !got.Blinded {
		t.Fatalf("reloaded cert = %+v", got)
	}
}

func TestEncryptedCertStoreTamperFailsAuth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "certs.enc")
	s, err := NewEncryptedPersistentCertStore(path, "pass")
	if err != nil {
		t.Fatalf("new store failed: %v", err)
	}
	if err := s.Record(testCert("05ff")); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file failed: %v", err)
	}
	data[len(data)-3] ^= 0xFF
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write tampered file failed: %v", err)
	}

	_, err = NewEncryptedPersistentCertStore(path, "pass")
	if !errors.Is(err, securestore.ErrAuthFailed) && !errors.Is(err, securestore.ErrInvalid) {
		t.Fatalf("expected ErrAuthFailed or ErrInvalid, got %v", err)
	}
}

func TestEncryptedCertStoreAcceptsLegacyPlaintext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "certs.json")
	plain, err := NewPersistentCertStore(path)
	if err != nil {
		t.Fatalf("new plain store failed: %v", err)
	}
	if err := plain.Record(testCert("0511")); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	// Opening a pre-encryption file with a passphrase migrates on next write.
	upgraded, err := NewEncryptedPersistentCertStore(path, "pass")
	if err != nil {
		t.Fatalf("open legacy file failed: %v", err)
	}
	if upgraded.Count() != 1 {
		t.Fatalf("count after legacy load = %d", upgraded.Count())
	}
}
