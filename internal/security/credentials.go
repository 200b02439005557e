/**
 * @description
 * This package owns credential hashing and verification for the ledger. The
 * core treats the stored hash as opaque and the verifier as a pass/fail gate;
 * nothing outside this package inspects or derives hashes.
 *
 * @dependencies
 * - golang.org/x/crypto/bcrypt: Password hashing.
 */

package security

import "golang.org/x/crypto/bcrypt"

// DefaultBcryptCost matches the cost the legacy deployment used for its
// account secrets.
const DefaultBcryptCost = 12

// CredentialVerifier checks a plaintext secret against a stored hash.
type CredentialVerifier interface {
	Verify(secret, storedHash string) bool
}

// CredentialHasher derives a storable hash from a plaintext secret.
type CredentialHasher interface {
	Hash(secret string) (string, error)
}

// BcryptCredentials implements both the hasher and the verifier with bcrypt.
type BcryptCredentials struct {
	Cost int
}

// NewBcryptCredentials returns a BcryptCredentials with the given cost,
// falling back to DefaultBcryptCost when cost is out of bcrypt's range.
func NewBcryptCredentials(cost int) *BcryptCredentials {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptCredentials{Cost: cost}
}

// Hash derives a bcrypt hash from the secret.
func (b *BcryptCredentials) Hash(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), b.Cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether secret matches storedHash.
func (b *BcryptCredentials) Verify(secret, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(secret)) == nil
}
