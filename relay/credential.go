package relay

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Credential is the admin password, kept only as a bcrypt hash.
type Credential struct {
	hash []byte
}

func NewCredential(password string, cost int) (*Credential, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, err
	}
	return &Credential{hash: hash}, nil
}

// CredentialFromHash accepts a precomputed bcrypt hash.
func CredentialFromHash(hash string) (*Credential, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, err
	}
	return &Credential{hash: []byte(hash)}, nil
}

func (c *Credential) Verify(password string) bool {
	if c == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword(c.hash, []byte(strings.TrimSpace(password))) == nil
}
