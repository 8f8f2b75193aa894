// Package hashx computes the content hashes that identify chunks.
//
// A deployment uses exactly one algorithm; both supported digests are 32
// bytes, so a chunk hash is always 64 lowercase hex characters.
package hashx

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

const (
	SHA256 = "sha256"
	BLAKE3 = "blake3"
)

// HexLen is the length of an encoded chunk hash.
const HexLen = 64

// Hasher produces chunk hashes.
type Hasher interface {
	Name() string
	Sum(data []byte) string
	SumReader(r io.Reader) (string, error)
}

// New returns the Hasher for algorithm; "" selects SHA-256, which is what
// browser-side boundary producers emit.
func New(algorithm string) (Hasher, error) {
	switch algorithm {
	case "", SHA256:
		return sha256Hasher{}, nil
	case BLAKE3:
		return blake3Hasher{}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}
}

// Valid reports whether s is a well-formed chunk hash.
func Valid(s string) bool {
	if len(s) != HexLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

type sha256Hasher struct{}

func (sha256Hasher) Name() string { return SHA256 }

func (sha256Hasher) Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (sha256Hasher) SumReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

type blake3Hasher struct{}

func (blake3Hasher) Name() string { return BLAKE3 }

func (blake3Hasher) Sum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (blake3Hasher) SumReader(r io.Reader) (string, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
