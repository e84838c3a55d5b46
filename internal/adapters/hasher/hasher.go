// Package hasher implements ports.Hasher on 64-bit xxhash digests.
package hasher

import (
	"github.com/cespare/xxhash/v2"
	"go.trai.ch/pipecache/internal/core/domain"
	"go.trai.ch/pipecache/internal/core/ports"
)

var _ ports.Hasher = (*Hasher)(nil)

// Hasher computes hex encoded xxhash digests.
type Hasher struct{}

// New creates a new Hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the digest of data.
func (h *Hasher) Hash(data []byte) string {
	return domain.FormatDigest(xxhash.Sum64(data))
}

// Combine returns the digest of the parts. Each part is followed by a separator,
// so empty parts still shift the digest.
func (h *Hasher) Combine(parts ...string) string {
	return domain.Digest(parts...)
}
