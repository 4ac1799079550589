package securestore

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteStateJSONRoundTripsEncrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "certs.enc")
	payload := map[string]string{"token": "05aa"}

	if err := WriteStateJSON(path, "pass", payload); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read raw failed: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte(filePrefix)) {
		t.Fatal("encrypted state must carry the envelope prefix")
	}

	plain, err := ReadStateFile(path, "pass")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(plain, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded["token"] != "05aa" {
		t.Fatalf("unexpected payload: %v", decoded)
	}
}

func TestWriteStateJSONPlaintextWithoutSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "certs.json")
	if err := WriteStateJSON(path, "", map[string]int{"n": 1}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read raw failed: %v", err)
	}
	if bytes.HasPrefix(raw, []byte(filePrefix)) {
		t.Fatal("no secret means no envelope")
	}
	plain, err := ReadStateFile(path, "")
	if err != nil || !bytes.Equal(plain, raw) {
		t.Fatalf("plaintext read mismatch: %v", err)
	}
}

func TestReadStateFileFallsBackToLegacyPlaintext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "certs.json")
	legacy := []byte(`{"certificates":{}}`)
	if err := os.WriteFile(path, legacy, 0o600); err != nil {
		t.Fatalf("write legacy file failed: %v", err)
	}

	// A secret on a pre-encryption file must still load it.
	plain, err := ReadStateFile(path, "pass")
	if err != nil {
		t.Fatalf("legacy read failed: %v", err)
	}
	if !bytes.Equal(plain, legacy) {
		t.Fatalf("unexpected legacy content: %q", plain)
	}
}

func TestReadStateFileRejectsWrongSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "certs.enc")
	if err := WriteStateJSON(path, "pass", map[string]int{"n": 1}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := ReadStateFile(path, "wrong"); err == nil {
		t.Fatal("wrong secret must fail")
	}
}
