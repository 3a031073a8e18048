// Package secrets stores integration credentials (Proxmox API tokens,
// AVM FRITZ!Box passwords) in the OS keychain, falling back to an
// AES-256-GCM encrypted file when no keychain backend is available.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"

	"github.com/bmetallica/netcatalog/internal/neterr"
)

const component = "secrets"

// Store wraps an OS keychain (with encrypted-file fallback) for
// integration credential material. Nothing stored here is ever logged.
type Store struct {
	ring          keyring.Keyring
	encryptionKey []byte
}

// Ref is an opaque handle into the Store, safe to persist alongside a
// Host row — it names a secret without revealing it.
type Ref string

func New() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	fileDir := filepath.Join(home, ".netcatalog", "secrets")

	ring, err := keyring.Open(keyring.Config{
		ServiceName: "netcatalog",
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.FileBackend,
		},
		FileDir: fileDir,
		FilePasswordFunc: func(string) (string, error) {
			return filePassword(), nil
		},
	})
	if err != nil {
		return nil, neterr.ConfigError(component, "open keyring", err)
	}

	return &Store{ring: ring, encryptionKey: encryptionKey()}, nil
}

func filePassword() string {
	if v := os.Getenv("NETCATALOG_SECRETS_PASSWORD"); v != "" {
		return v
	}
	return "netcatalog-dev-only-insecure-password"
}

func encryptionKey() []byte {
	material := os.Getenv("NETCATALOG_ENCRYPTION_KEY")
	if material == "" {
		material = "netcatalog-dev-only-insecure-key"
	}
	sum := sha256.Sum256([]byte(material))
	return sum[:]
}

// Put stores value under a fresh Ref and returns it. value is never
// logged; callers should log only the returned Ref and len(value).
func (s *Store) Put(label, value string) (Ref, error) {
	encrypted, err := s.encrypt(value)
	if err != nil {
		return "", neterr.ConfigError(component, "encrypt secret", err)
	}

	key := "netcatalog-" + label + "-" + randomSuffix()
	item := keyring.Item{
		Key:         key,
		Data:        []byte(encrypted),
		Label:       label,
		Description: "netcatalog integration credential",
	}
	if err := s.ring.Set(item); err != nil {
		return "", neterr.ConfigError(component, "store secret", err)
	}
	return Ref(key), nil
}

// Get retrieves and decrypts the value behind ref.
func (s *Store) Get(ref Ref) (string, error) {
	if ref == "" {
		return "", errors.New("empty secret reference")
	}
	item, err := s.ring.Get(string(ref))
	if err != nil {
		return "", neterr.ConfigError(component, "retrieve secret", err)
	}
	value, err := s.decrypt(string(item.Data))
	if err != nil {
		return "", neterr.ConfigError(component, "decrypt secret", err)
	}
	return value, nil
}

func (s *Store) Delete(ref Ref) error {
	if ref == "" {
		return nil
	}
	if err := s.ring.Remove(string(ref)); err != nil {
		return neterr.ConfigError(component, "delete secret", err)
	}
	return nil
}

func (s *Store) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (s *Store) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func randomSuffix() string {
	buf := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "0"
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
