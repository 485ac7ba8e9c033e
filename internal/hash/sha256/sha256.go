// Package sha256 names stored article objects after their normalized URL.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
)

// Hasher digests article keys with SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// HashKey returns the hex digest of an article's normalized URL. The input is
// normalized again, so a raw variant and its dedup key share one digest.
func (h *Hasher) HashKey(key string) (string, error) {
	normalized, err := harvest.NormalizeKey(key)
	if err != nil {
		return "", fmt.Errorf("hash key: %w", err)
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:]), nil
}
