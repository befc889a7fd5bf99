// Package sha256 provides the SHA-256 digest used to key site-map edges.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements crawler.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data. It never fails.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// HashEdge keys a directed site-map edge. Source and destination are joined
// with a NUL byte, which cannot appear in a canonical URL, so no two distinct
// edges share an input.
func (h *Hasher) HashEdge(source, dest string) (string, error) {
	d := sha256.New()
	d.Write([]byte(source))
	d.Write([]byte{0})
	d.Write([]byte(dest))
	return hex.EncodeToString(d.Sum(nil)), nil
}
