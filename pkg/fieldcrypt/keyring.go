package fieldcrypt

import (
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"
)

// KeyRing derives versioned 32-byte keys from one master secret with
// HKDF-SHA256. Old versions stay derivable so rotated values still decrypt.
type KeyRing struct {
	master []byte
	scope  string

	mu      sync.RWMutex
	current int
	keys    map[int][]byte
}

// NewKeyRing starts at version 1. scope separates key families derived from
// the same master secret.
func NewKeyRing(master []byte, scope string) *KeyRing {
	return &KeyRing{master: master, scope: scope, current: 1, keys: make(map[int][]byte)}
}

// Current returns the key new values are encrypted with.
func (k *KeyRing) Current() ([]byte, int, error) {
	k.mu.RLock()
	v := k.current
	k.mu.RUnlock()
	key, err := k.ByVersion(v)
	return key, v, err
}

// ByVersion returns the key for version, deriving it on first use.
func (k *KeyRing) ByVersion(version int) ([]byte, error) {
	if version < 1 {
		return nil, fmt.Errorf("fieldcrypt: invalid key version %d", version)
	}
	k.mu.RLock()
	key, ok := k.keys[version]
	k.mu.RUnlock()
	if ok {
		return key, nil
	}

	info := fmt.Sprintf("fieldcrypt:%s:v%d", k.scope, version)
	key = make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, k.master, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("fieldcrypt: key derivation failed: %w", err)
	}
	k.mu.Lock()
	k.keys[version] = key
	k.mu.Unlock()
	return key, nil
}

// Rotate moves new encryptions to the next version.
func (k *KeyRing) Rotate() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.current++
	return k.current
}
