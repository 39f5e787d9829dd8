package file

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/bnema/kintales-cli/internal/ports"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	storeDirMode  = 0o700
	secretFileMod = 0o600

	masterKeyFile = ".master.key"
	secretSuffix  = ".sealed"
	hkdfSalt      = "kintales-file-secrets-v1"
)

// Store keeps each secret in its own file, sealed with XChaCha20-Poly1305
// under a per-key subkey derived from a local master key.
type Store struct {
	root string
	mu   sync.RWMutex
}

var _ ports.SecretStore = (*Store)(nil)

func NewStore(root string) *Store {
	return &Store{root: filepath.Clean(root)}
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.pathForKey(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	masterKey, err := s.loadMasterKey(true)
	if err != nil {
		return err
	}

	sealed, err := seal(masterKey, key, []byte(value))
	if err != nil {
		return fmt.Errorf("seal file secret %q: %w", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), storeDirMode); err != nil {
		return fmt.Errorf("create file secret directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, sealed, secretFileMod); err != nil {
		return fmt.Errorf("write file secret %q: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace file secret %q: %w", key, err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := s.pathForKey(key)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("file secret %q: %w", key, domain.ErrSecretNotFound)
		}
		return "", fmt.Errorf("read file secret %q: %w", key, err)
	}

	masterKey, err := s.loadMasterKey(false)
	if err != nil {
		return "", err
	}

	plain, err := open(masterKey, key, data)
	if err != nil {
		return "", fmt.Errorf("open file secret %q: %w", key, err)
	}

	return string(plain), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.pathForKey(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete file secret %q: %w", key, err)
	}

	return nil
}

func (s *Store) pathForKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", errors.New("secret key is empty")
	}

	cleaned := filepath.Clean(trimmed)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") || cleaned == "." {
		return "", fmt.Errorf("invalid secret key %q", key)
	}

	return filepath.Join(s.root, cleaned+secretSuffix), nil
}

func (s *Store) loadMasterKey(create bool) ([]byte, error) {
	path := filepath.Join(s.root, masterKeyFile)

	masterKey, err := os.ReadFile(path)
	if err == nil {
		if len(masterKey) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("master key %s has invalid length %d", path, len(masterKey))
		}
		return masterKey, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read master key: %w", err)
	}
	if !create {
		return nil, fmt.Errorf("master key missing: %w", domain.ErrSecretNotFound)
	}

	masterKey = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(masterKey); err != nil {
		return nil, fmt.Errorf("generate master key: %w", err)
	}
	if err := os.MkdirAll(s.root, storeDirMode); err != nil {
		return nil, fmt.Errorf("create file secret directory: %w", err)
	}
	if err := os.WriteFile(path, masterKey, secretFileMod); err != nil {
		return nil, fmt.Errorf("write master key: %w", err)
	}

	return masterKey, nil
}

func deriveKey(masterKey []byte, key string) ([]byte, error) {
	subkey := make([]byte, chacha20poly1305.KeySize)
	reader := hkdf.New(sha256.New, masterKey, []byte(hkdfSalt), []byte(key))
	if _, err := io.ReadFull(reader, subkey); err != nil {
		return nil, fmt.Errorf("derive subkey: %w", err)
	}
	return subkey, nil
}

func seal(masterKey []byte, key string, plain []byte) ([]byte, error) {
	subkey, err := deriveKey(masterKey, key)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(subkey)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plain, []byte(key)), nil
}

func open(masterKey []byte, key string, sealed []byte) ([]byte, error) {
	subkey, err := deriveKey(masterKey, key)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(subkey)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, errors.New("sealed secret is truncated")
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, []byte(key))
}
