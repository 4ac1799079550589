package securestore

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// ReadStateFile reads a state file, decrypting when a secret is set. A file
// written before encryption was configured decrypts as ErrLegacyData and is
// returned as-is, so enabling a secret never strands existing state.
func ReadStateFile(path, secret string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if secret == "" {
		return raw, nil
	}
	plain, err := Decrypt(secret, raw)
	if errors.Is(err, ErrLegacyData) {
		return raw, nil
	}
	if err != nil {
		return nil, err
	}
	return plain, nil
}

// WriteStateJSON marshals v and writes it under a private directory,
// encrypting when a secret is set.
func WriteStateJSON(path, secret string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if secret != "" {
		payload, err = Encrypt(secret, payload)
		if err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}
