// Package dedup derives stable identity keys for business listings so the
// same real-world store is recognised across uploaded reports and live
// scrapes, however inconsistently its name or address is written.
package dedup

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const separator = "|"

// emptyKey is the key of a record with no usable identity data. It must
// never enter a KeySet or every unidentifiable row would collide.
const emptyKey = separator

// Key normalises a (name, address) pair into a dedup key. Case,
// whitespace and punctuation differences collapse to the same key.
func Key(name, address string) string {
	return normalise(name) + separator + normalise(address)
}

// normalise lower-cases, folds diacritics ("Café" and "CAFE" must
// collide) and keeps only letters and digits.
func normalise(s string) string {
	s = norm.NFD.String(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// KeySet is the append-only acceptance set for one job. Keys are never
// removed; the all-empty key is rejected.
type KeySet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewKeySet creates an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{seen: make(map[string]struct{})}
}

// Add returns true if the key was newly inserted. The empty key is never
// inserted and always returns false.
func (s *KeySet) Add(key string) bool {
	if key == emptyKey {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains reports whether the key has been accepted.
func (s *KeySet) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[key]
	return exists
}

// Size returns the number of accepted keys.
func (s *KeySet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

// Clone returns an independent copy. The orchestrator starts each job from
// a clone of the uploaded file's keys so the upload itself stays untouched.
func (s *KeySet) Clone() *KeySet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := &KeySet{seen: make(map[string]struct{}, len(s.seen))}
	for k := range s.seen {
		c.seen[k] = struct{}{}
	}
	return c
}
