package fieldcrypt

// Cipher encrypts secure configuration values with the current key of a
// KeyRing and decrypts values written under any earlier version.
type Cipher struct {
	ring *KeyRing
}

func NewCipher(ring *KeyRing) *Cipher { return &Cipher{ring: ring} }

func (c *Cipher) Encrypt(plain string) (string, error) {
	key, version, err := c.ring.Current()
	if err != nil {
		return "", err
	}
	return Encrypt(plain, key, version)
}

func (c *Cipher) Decrypt(encrypted string) (string, error) {
	return Decrypt(encrypted, c.ring.ByVersion)
}
