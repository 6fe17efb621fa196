package infra

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
)

const (
	keyFileName = "store.key"
	keySize     = 32 // SQLCipher raw key
)

// FileKeyProvider keeps the store key in a hex file inside the data
// directory. The store holds the real passwords of blocked accounts, so the
// file must belong to the daemon's user and be unreadable by anyone else.
type FileKeyProvider struct {
	keyPath string
	owner   int
}

// NewFileKeyProvider creates a FileKeyProvider for the given data directory,
// owned by the effective user of the process.
func NewFileKeyProvider(dataDir string) *FileKeyProvider {
	return &FileKeyProvider{
		keyPath: filepath.Join(dataDir, keyFileName),
		owner:   os.Geteuid(),
	}
}

// Path returns the key file location.
func (p *FileKeyProvider) Path() string {
	return p.keyPath
}

// GetKey reads the store key. Symlinks, foreign owners and group or world
// permissions are refused.
func (p *FileKeyProvider) GetKey() ([]byte, error) {
	info, err := os.Lstat(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("stat store key: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("store key %s is not a regular file", p.keyPath)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return nil, fmt.Errorf("store key %s has mode %o, want 0600", p.keyPath, perm)
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok && int(st.Uid) != p.owner {
		return nil, fmt.Errorf("store key %s is owned by uid %d, want %d", p.keyPath, st.Uid, p.owner)
	}

	raw, err := os.ReadFile(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("read store key: %w", err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("decode store key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	return key, nil
}

// StoreKey writes the key through a temporary file so a crash never leaves
// a truncated key behind.
func (p *FileKeyProvider) StoreKey(key []byte) error {
	if len(key) != keySize {
		return fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	dir := filepath.Dir(p.keyPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, keyFileName+".*")
	if err != nil {
		return fmt.Errorf("create store key: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(hex.EncodeToString(key) + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("write store key: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync store key: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close store key: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.keyPath); err != nil {
		return fmt.Errorf("install store key: %w", err)
	}
	return nil
}

// KeyExists reports whether anything occupies the key path.
func (p *FileKeyProvider) KeyExists() bool {
	_, err := os.Lstat(p.keyPath)
	return err == nil
}

// GenerateKey returns a fresh random store key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate store key: %w", err)
	}
	return key, nil
}

// EnsureKey returns the stored key, generating and storing one on first
// start. created reports whether a new key was generated, which also means
// any existing database can no longer be opened.
func EnsureKey(provider domain.KeyProvider) (key []byte, created bool, err error) {
	if provider.KeyExists() {
		key, err = provider.GetKey()
		return key, false, err
	}
	key, err = GenerateKey()
	if err != nil {
		return nil, false, err
	}
	if err := provider.StoreKey(key); err != nil {
		return nil, false, err
	}
	return key, true, nil
}

var _ domain.KeyProvider = (*FileKeyProvider)(nil)
