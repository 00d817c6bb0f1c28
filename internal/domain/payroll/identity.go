package payroll

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	syntheticIDMin = 1000
	syntheticIDMax = 9999
)

// IdentityNormalizer canonicalizes employee ids to the organization prefix.
// Ids that cannot be canonicalized are replaced by a random synthetic id, so
// normalizing the same unprefixed input twice may give different results.
type IdentityNormalizer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewIdentityNormalizer(src rand.Source) *IdentityNormalizer {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &IdentityNormalizer{rnd: rand.New(src)}
}

func (n *IdentityNormalizer) Normalize(rawID string) string {
	trimmed := strings.TrimSpace(rawID)
	if HasIdentityPrefix(trimmed) {
		return strings.ToUpper(trimmed)
	}
	return n.synthesize()
}

func (n *IdentityNormalizer) synthesize() string {
	n.mu.Lock()
	suffix := syntheticIDMin + n.rnd.Intn(syntheticIDMax-syntheticIDMin+1)
	n.mu.Unlock()
	return IdentityPrefix + strconv.Itoa(suffix)
}

func HasIdentityPrefix(id string) bool {
	return len(id) >= len(IdentityPrefix) && strings.EqualFold(id[:len(IdentityPrefix)], IdentityPrefix)
}
