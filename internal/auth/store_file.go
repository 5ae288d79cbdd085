package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// FileStore keeps the token record in a small JSON document on disk,
// keyed by TokenKey. When a seal key is set the document is encrypted
// with NaCl secretbox.
type FileStore struct {
	mu   sync.Mutex
	path string
	key  *[32]byte

	// Now returns the current time; overridden in tests
	Now func() time.Time
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store backed by path. sealKey may be nil.
func NewFileStore(path string, sealKey *[32]byte) *FileStore {
	return &FileStore{path: path, key: sealKey, Now: time.Now}
}

func (s *FileStore) Load(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	raw, ok := doc[TokenKey]
	if !ok {
		return nil, nil
	}
	return decodeToken(raw, s.Now()), nil
}

func (s *FileStore) Save(ctx context.Context, t Token) error {
	data, err := encodeToken(t)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if err != nil {
		return err
	}
	doc[TokenKey] = data
	return s.writeLocked(doc)
}

// readLocked returns the stored document. A missing file is an empty
// document; an unreadable one is logged and treated the same way.
func (s *FileStore) readLocked() (map[string]json.RawMessage, error) {
	doc := make(map[string]json.RawMessage)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	if s.key != nil {
		opened, ok := s.open(data)
		if !ok {
			log.Warn().Str("path", s.path).Msg("token file could not be unsealed, ignoring contents")
			return doc, nil
		}
		data = opened
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("token file is not valid JSON, ignoring contents")
		return make(map[string]json.RawMessage), nil
	}
	return doc, nil
}

func (s *FileStore) writeLocked(doc map[string]json.RawMessage) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if s.key != nil {
		if data, err = s.seal(data); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	// Write-then-rename so a crash never leaves a half-written file
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".token-*")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("failed to set token file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

func (s *FileStore) seal(plain []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, s.key), nil
}

func (s *FileStore) open(sealed []byte) ([]byte, bool) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, false
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	return secretbox.Open(nil, sealed[nonceSize:], &nonce, s.key)
}
