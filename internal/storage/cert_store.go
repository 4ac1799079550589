// Package storage persists the delegation certificates this client has
// issued, so revocation can name a token long after the delegate's key is
// gone. A store with an empty path is memory-only.
package storage

import (
	"encoding/json"
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"pkmsg/go-client/internal/securestore"
	"pkmsg/go-client/pkg/models"
)

var (
	ErrCertConflict = errors.New("certificate already recorded with different content")
	ErrCertUnknown  = errors.New("certificate not found")
)

// CertStore holds issued delegations keyed by token hex. Mutations build
// the next snapshot, persist it, and only then swap it in, so a failed
// write never leaves memory and disk disagreeing.
type CertStore struct {
	mu     sync.RWMutex
	certs  map[string]models.IssuedDelegation
	path   string
	secret string
}

func NewCertStore() *CertStore {
	return &CertStore{certs: make(map[string]models.IssuedDelegation)}
}

func NewPersistentCertStore(path string) (*CertStore, error) {
	return NewEncryptedPersistentCertStore(path, "")
}

func NewEncryptedPersistentCertStore(path, passphrase string) (*CertStore, error) {
	s := &CertStore{
		certs:  make(map[string]models.IssuedDelegation),
		path:   path,
		secret: passphrase,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Record stores a newly issued certificate. Re-recording an identical
// certificate is a no-op; a token collision with different content is an
// error, since tokens are supposed to pin their grant.
func (s *CertStore) Record(cert models.IssuedDelegation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.certs[cert.TokenHex]; ok {
		if certsEqual(existing, cert) {
			return nil
		}
		return ErrCertConflict
	}
	next := cloneCerts(s.certs)
	next[cert.TokenHex] = cert
	if err := s.persistLocked(next); err != nil {
		return err
	}
	s.certs = next
	return nil
}

// Revoke marks a certificate revoked as of now. Revoking twice keeps the
// original timestamp.
func (s *CertStore) Revoke(tokenHex string, now time.Time) (models.IssuedDelegation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cert, ok := s.certs[tokenHex]
	if !ok {
		return models.IssuedDelegation{}, ErrCertUnknown
	}
	if !cert.RevokedAt.IsZero() {
		return cert, nil
	}
	cert.RevokedAt = now.UTC()
	next := cloneCerts(s.certs)
	next[tokenHex] = cert
	if err := s.persistLocked(next); err != nil {
		return models.IssuedDelegation{}, err
	}
	s.certs = next
	return cert, nil
}

// Unrevoke clears the revocation mark on each named token. Unknown tokens
// are skipped; the store-side unrevoke list may name tokens issued
// elsewhere.
func (s *CertStore) Unrevoke(tokenHexes []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := cloneCerts(s.certs)
	cleared := 0
	for _, tokenHex := range tokenHexes {
		cert, ok := next[tokenHex]
		if !ok || cert.RevokedAt.IsZero() {
			continue
		}
		cert.RevokedAt = time.Time{}
		next[tokenHex] = cert
		cleared++
	}
	if cleared == 0 {
		return 0, nil
	}
	if err := s.persistLocked(next); err != nil {
		return 0, err
	}
	s.certs = next
	return cleared, nil
}

func (s *CertStore) Get(tokenHex string) (models.IssuedDelegation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.certs[tokenHex]
	return cert, ok
}

// List returns all certificates ordered by issue time.
func (s *CertStore) List() []models.IssuedDelegation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.IssuedDelegation, 0, len(s.certs))
	for _, cert := range s.certs {
		out = append(out, cert)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TokenHex < out[j].TokenHex
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Revoked returns the token hexes currently marked revoked, ordered by
// token, ready for an unrevoke batch.
func (s *CertStore) Revoked() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0)
	for tokenHex, cert := range s.certs {
		if !cert.RevokedAt.IsZero() {
			out = append(out, tokenHex)
		}
	}
	sort.Strings(out)
	return out
}

func (s *CertStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.certs)
}

func (s *CertStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return nil
	}
	data, err := securestore.ReadStateFile(s.path, s.secret)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var snapshot struct {
		Certificates map[string]models.IssuedDelegation `json:"certificates"`
	}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}
	if snapshot.Certificates != nil {
		s.certs = snapshot.Certificates
	}
	return nil
}

func (s *CertStore) persistLocked(certs map[string]models.IssuedDelegation) error {
	if s.path == "" {
		return nil
	}
	snapshot := struct {
		Certificates map[string]models.IssuedDelegation `json:"certificates"`
	}{Certificates: certs}
	return securestore.WriteStateJSON(s.path, s.secret, snapshot)
}

func cloneCerts(in map[string]models.IssuedDelegation) map[string]models.IssuedDelegation {
	out := make(map[string]models.IssuedDelegation, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func certsEqual(a, b models.IssuedDelegation) bool {
	return a.TokenHex == b.TokenHex &&
		string(a.OwnerPublicKey) == string(b.OwnerPublicKey) &&
		string(a.TargetPublicKey) == string(b.TargetPublicKey) &&
		a.Permissions == b.Permissions &&
		a.Blinded == b.Blinded &&
		string(a.OwnerSignature) == string(b.OwnerSignature) &&
		a.CreatedAt.Equal(b.CreatedAt)
}
