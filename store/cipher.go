package store

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

var ErrCipher = errors.New("cannot decrypt state")

var magic = []byte("ARL1")

const (
	saltSize = 16

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// Cipher encrypts the persisted document with XChaCha20-Poly1305.
// Layout: "ARL1" | salt(16) | nonce(24) | ciphertext.
// The key is argon2id(passphrase, salt); one salt is reused for the life of the Cipher.
type Cipher struct {
	passphrase []byte

	mu   sync.Mutex
	salt []byte
	keys map[string][]byte
}

func NewCipher(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return nil, errors.New("empty passphrase")
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return &Cipher{
		passphrase: []byte(passphrase),
		salt:       salt,
		keys:       make(map[string][]byte),
	}, nil
}

func (c *Cipher) key(salt []byte) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if k, ok := c.keys[string(salt)]; ok {
		return k
	}
	k := argon2.IDKey(c.passphrase, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
	c.keys[string(salt)] = k
	return k
}

func (c *Cipher) Encrypt(plain []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key(c.salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(magic)+saltSize+len(nonce)+len(plain)+aead.Overhead())
	out = append(out, magic...)
	out = append(out, c.salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plain, magic), nil
}

func (c *Cipher) Decrypt(data []byte) ([]byte, error) {
	header := len(magic) + saltSize + chacha20poly1305.NonceSizeX
	if len(data) < header+chacha20poly1305.Overhead || !IsEncrypted(data) {
		return nil, fmt.Errorf("%w: truncated or unknown format", ErrCipher)
	}

	salt := data[len(magic) : len(magic)+saltSize]
	nonce := data[len(magic)+saltSize : header]

	aead, err := chacha20poly1305.NewX(c.key(salt))
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, nonce, data[header:], magic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCipher, err)
	}
	return plain, nil
}

// IsEncrypted reports whether data carries the cipher header.
func IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, magic)
}
