// Package fieldcrypt encrypts individual configuration values with
// AES-256-GCM under versioned keys.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Prefix marks an encrypted value: "epf:v{version}:{base64(nonce+ciphertext)}".
const Prefix = "epf:"

// ErrNotEncrypted is returned when decrypting a value without Prefix.
var ErrNotEncrypted = errors.New("fieldcrypt: not an encrypted value")

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: create GCM: %w", err)
	}
	return aead, nil
}

// Encrypt seals plaintext under key and tags the result with version.
func Encrypt(plaintext string, key []byte, version int) (string, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("fieldcrypt: generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return Prefix + "v" + strconv.Itoa(version) + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. keyFn resolves the version
// embedded in the value to its key.
func Decrypt(value string, keyFn func(version int) ([]byte, error)) (string, error) {
	version, encoded, err := parse(value)
	if err != nil {
		return "", err
	}
	key, err := keyFn(version)
	if err != nil {
		return "", fmt.Errorf("fieldcrypt: key lookup: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("fieldcrypt: base64 decode: %w", err)
	}
	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("fieldcrypt: ciphertext too short")
	}
	nonce, ct := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("fieldcrypt: decryption failed: %w", err)
	}
	return string(plain), nil
}

func parse(value string) (int, string, error) {
	if !strings.HasPrefix(value, Prefix) {
		return 0, "", ErrNotEncrypted
	}
	rest := strings.TrimPrefix(value, Prefix)
	idx := strings.Index(rest, ":")
	if idx < 0 || !strings.HasPrefix(rest, "v") {
		return 0, "", fmt.Errorf("fieldcrypt: invalid format")
	}
	version, err := strconv.Atoi(rest[1:idx])
	if err != nil {
		return 0, "", fmt.Errorf("fieldcrypt: invalid version: %w", err)
	}
	return version, rest[idx+1:], nil
}

// IsEncrypted reports whether value carries Prefix.
func IsEncrypted(value string) bool { return strings.HasPrefix(value, Prefix) }
