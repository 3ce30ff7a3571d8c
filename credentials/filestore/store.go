// Package filestore is a durable credentials.Repo backed by a sealed file.
//
// Both tokens are serialized into a single file so that Save and Clear are
// atomic with respect to concurrent readers: the file is replaced with a
// rename, or removed outright. The payload is sealed with nacl/secretbox
// using a per-store random key kept in a sibling 0600 file, so bearer tokens
// are never written to disk in the clear.
package filestore

import (
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/jrsteele09/go-crm-client/credentials"
)

const (
	keyFileName  = "credentials.key"
	dataFileName = "credentials.dat"

	keySize   = 32
	nonceSize = 24
)

var _ credentials.Repo = (*Store)(nil)

// Store persists a single credential under a directory.
type Store struct {
	dir  string
	key  [keySize]byte
	lock sync.Mutex
}

// New opens (or initializes) a credential store rooted at dir. The sealing
// key is created on first use and reused on subsequent opens, so credentials
// written by a previous process remain readable.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("[filestore.New] dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "[filestore.New] MkdirAll")
	}

	s := &Store{dir: dir}
	if err := s.loadOrCreateKey(); err != nil {
		return nil, err
	}
	return s, nil
}

type storedCredential struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Save seals and writes both tokens as one file replacement.
func (s *Store) Save(c credentials.Credential) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	plaintext, err := json.Marshal(storedCredential{
		Access:  c.AccessToken,
		Refresh: c.RefreshToken,
	})
	if err != nil {
		return errors.Wrap(err, "[Store.Save] Marshal")
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return errors.Wrap(err, "[Store.Save] rand.Read")
	}
	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &s.key)

	tmp, err := os.CreateTemp(s.dir, dataFileName+".*")
	if err != nil {
		return errors.Wrap(err, "[Store.Save] CreateTemp")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "[Store.Save] Write")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "[Store.Save] Close")
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "[Store.Save] Chmod")
	}
	if err := os.Rename(tmpName, s.dataPath()); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "[Store.Save] Rename")
	}
	return nil
}

// Load returns the stored credential, or nil when none is stored.
func (s *Store) Load() (*credentials.Credential, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	sealed, err := os.ReadFile(s.dataPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Store.Load] ReadFile")
	}
	if len(sealed) < nonceSize {
		return nil, errors.New("[Store.Load] stored credential truncated")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, errors.New("[Store.Load] stored credential unreadable")
	}

	var stored storedCredential
	if err := json.Unmarshal(plaintext, &stored); err != nil {
		return nil, errors.Wrap(err, "[Store.Load] Unmarshal")
	}
	return &credentials.Credential{
		AccessToken:  stored.Access,
		RefreshToken: stored.Refresh,
	}, nil
}

// Clear removes both tokens in one operation. Clearing an empty store is
// not an error.
func (s *Store) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := os.Remove(s.dataPath()); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[Store.Clear] Remove")
	}
	return nil
}

func (s *Store) dataPath() string {
	return filepath.Join(s.dir, dataFileName)
}

func (s *Store) loadOrCreateKey() error {
	keyPath := filepath.Join(s.dir, keyFileName)

	raw, err := os.ReadFile(keyPath)
	if err == nil {
		if len(raw) != keySize {
			return errors.New("[filestore.New] sealing key corrupted")
		}
		copy(s.key[:], raw)
		return nil
	}
	if !os.IsNotExist(err) {
		return errors.Wrap(err, "[filestore.New] ReadFile key")
	}

	if _, err := rand.Read(s.key[:]); err != nil {
		return errors.Wrap(err, "[filestore.New] rand.Read")
	}
	if err := os.WriteFile(keyPath, s.key[:], 0o600); err != nil {
		return errors.Wrap(err, "[filestore.New] WriteFile key")
	}
	return nil
}
