// Package auth holds credential comparison helpers and the set of
// backend identities allowed to deliver render callbacks.
package auth

import (
	"crypto/subtle"

	"github.com/vidforge/rendertrack/pkg/models"
)

// SecureCompare performs constant-time comparison
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// BackendIdentity is one render backend allowed to push callbacks,
// authenticated by a shared secret.
type BackendIdentity struct {
	Name   string             `yaml:"name"`
	Kind   models.BackendKind `yaml:"kind"`
	Secret string             `yaml:"secret"`
}

// IdentitySet is the collection of known backend identities
type IdentitySet struct {
	identities []BackendIdentity
}

// NewIdentitySet builds an identity set
func NewIdentitySet(identities ...BackendIdentity) *IdentitySet {
	return &IdentitySet{identities: identities}
}

// Match finds the identity whose secret matches. Every identity is
// compared so the call takes the same time whether or not any matches.
func (s *IdentitySet) Match(secret string) (BackendIdentity, bool) {
	var matched BackendIdentity
	found := false
	for _, id := range s.identities {
		if SecureCompare(id.Secret, secret) {
			matched = id
			found = true
		}
	}
	if secret == "" {
		return BackendIdentity{}, false
	}
	return matched, found
}

// Empty reports whether the set has no identities
func (s *IdentitySet) Empty() bool {
	return len(s.identities) == 0
}
