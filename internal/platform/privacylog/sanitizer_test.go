package privacylog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSanitizeArgsFingerprintsDisallowedIDs(t *testing.T) {
	args := SanitizeArgs(
		"pubkey", "05d871fc80ca007eee9a9e7cbc4383982",
		"delegate_id", "pk1abc",
		"method", "store",
	)
	if len(args) != 6 {
		t.Fatalf("unexpected args length: %d", len(args))
	}
	if got := args[0]; got != "pubkey_fp" {
		t.Fatalf("unexpected key: %v", got)
	}
	if got := args[1].(string); !strings.HasPrefix(got, "fp_") {
		t.Fatalf("unexpected fingerprint value: %q", got)
	}
	if got := args[4]; got != "method" {
		t.Fatalf("expected untouched key, got %v", got)
	}
}

func TestSanitizingHandlerRedactsSensitiveAndIDs(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(WrapHandler(base))
	logger.Info("test", "store_id", "05d871", "wallet_mnemonic", "abandon ability able", "status", "ok")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}
	if _, ok := payload["store_id"]; ok {
		t.Fatal("store_id should not be present")
	}
	if _, ok := payload["store_id_fp"]; !ok {
		t.Fatal("store_id_fp should be present")
	}
	if got, _ := payload["wallet_mnemonic"].(string); got != redactedValue {
		t.Fatalf("expected redacted mnemonic, got %q", got)
	}
}

func TestSanitizingHandlerFingerprintsPubkeySuffix(t *testing.T) {
	var buf bytes.Buffer
	h := WrapHandler(slog.NewJSONHandler(&buf, nil))
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected handler enabled for info")
	}
	rec := slog.NewRecord(time.Now().UTC(), slog.LevelInfo, "msg", 0)
	rec.AddAttrs(slog.String("owner_pubkey", "05d871"))
	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if !strings.Contains(buf.String(), "owner_pubkey_fp") {
		t.Fatalf("expected sanitized owner_pubkey key, got %s", buf.String())
	}
}

func TestFingerprintIDStableWithinProcess(t *testing.T) {
	a := FingerprintID("05d871")
	b := FingerprintID("05d871")
	if a == "" || a != b {
		t.Fatalf("fingerprint must be stable within a run: %q vs %q", a, b)
	}
	if FingerprintID("  ") != "" {
		t.Fatal("blank values fingerprint to empty")
	}
}
