package fieldcrypt

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func testKey() []byte { return bytes.Repeat([]byte{7}, 32) }

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := Encrypt("s3cret", testKey(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(enc, "epf:v3:") {
		t.Fatalf("unexpected format %q", enc)
	}
	if strings.Contains(enc, "s3cret") {
		t.Fatal("plaintext leaked into ciphertext")
	}
	got, err := Decrypt(enc, func(v int) ([]byte, error) {
		if v != 3 {
			t.Fatalf("expected version 3, got %d", v)
		}
		return testKey(), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "s3cret" {
		t.Fatalf("expected s3cret, got %q", got)
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	a, _ := Encrypt("same", testKey(), 1)
	b, _ := Encrypt("same", testKey(), 1)
	if a == b {
		t.Fatal("expected distinct ciphertexts")
	}
}

func TestDecryptErrors(t *testing.T) {
	keyFn := func(int) ([]byte, error) { return testKey(), nil }
	if _, err := Decrypt("plain", keyFn); !errors.Is(err, ErrNotEncrypted) {
		t.Errorf("expected ErrNotEncrypted, got %v", err)
	}
	for _, bad := range []string{"epf:3:abc", "epf:vx:abc", "epf:v1:!!!", "epf:v1:AAAA"} {
		if _, err := Decrypt(bad, keyFn); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}

	enc, _ := Encrypt("x", testKey(), 1)
	wrong := func(int) ([]byte, error) { return bytes.Repeat([]byte{9}, 32), nil }
	if _, err := Decrypt(enc, wrong); err == nil {
		t.Error("expected authentication failure with the wrong key")
	}
}

func TestIsEncrypted(t *testing.T) {
	if IsEncrypted("hello") || !IsEncrypted("epf:v1:AAAA") {
		t.Fatal("unexpected IsEncrypted result")
	}
}

func TestKeyRingRotation(t *testing.T) {
	ring := NewKeyRing([]byte("master"), "pipelines")
	k1, v1, err := ring.Current()
	if err != nil || v1 != 1 {
		t.Fatalf("expected version 1, got %d (%v)", v1, err)
	}
	if v := ring.Rotate(); v != 2 {
		t.Fatalf("expected version 2, got %d", v)
	}
	k2, v2, _ := ring.Current()
	if v2 != 2 || bytes.Equal(k1, k2) {
		t.Fatal("expected a new key after rotation")
	}
	again, _ := ring.ByVersion(1)
	if !bytes.Equal(k1, again) {
		t.Fatal("expected version 1 to stay derivable")
	}
	if _, err := ring.ByVersion(0); err == nil {
		t.Fatal("expected error for version 0")
	}
}

func TestKeyRingScopesAreIsolated(t *testing.T) {
	a, _, _ := NewKeyRing([]byte("master"), "a").Current()
	b, _, _ := NewKeyRing([]byte("master"), "b").Current()
	if bytes.Equal(a, b) {
		t.Fatal("expected different scopes to derive different keys")
	}
}

func TestCipherSurvivesRotation(t *testing.T) {
	ring := NewKeyRing([]byte("master"), "pipelines")
	c := NewCipher(ring)
	old, err := c.Encrypt("pass")
	if err != nil {
		t.Fatal(err)
	}
	ring.Rotate()
	fresh, _ := c.Encrypt("pass")
	if !strings.HasPrefix(fresh, "epf:v2:") {
		t.Fatalf("expected new values under v2, got %q", fresh)
	}
	for _, enc := range []string{old, fresh} {
		got, err := c.Decrypt(enc)
		if err != nil || got != "pass" {
			t.Fatalf("decrypt %q: %q %v", enc, got, err)
		}
	}
}
