package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
)

// Crypter seals stored session data with AES-GCM
type Crypter struct {
	aead cipher.AEAD
}

// NewCrypter uses the first 32 bytes of key
func NewCrypter(key string) (*Crypter, error) {
	k := []byte(key)
	if len(k) < 32 {
		return nil, fmt.Errorf("key length must be >= 32 bytes, got %d", len(k))
	}
	block, err := aes.NewCipher(k[:32])
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &Crypter{aead: aead}, nil
}

// Encrypt returns nonce + ciphertext
func (c *Crypter) Encrypt(data []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, data, nil), nil
}

// Decrypt accepts raw ciphertext ([]byte)
func (c *Crypter) Decrypt(data []byte) ([]byte, error) {
	n := c.aead.NonceSize()
	if len(data) < n {
		return nil, fmt.Errorf("ciphertext too short")
	}
	return c.aead.Open(nil, data[:n], data[n:], nil)
}

// SealJSON marshals and encrypts v
func (c *Crypter) SealJSON(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return c.Encrypt(data)
}

// OpenJSON decrypts data into v
func (c *Crypter) OpenJSON(data []byte, v interface{}) error {
	plain, err := c.Decrypt(data)
	if err != nil {
		return fmt.Errorf("decrypt: %w", err)
	}
	if err := json.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}
