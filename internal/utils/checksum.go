package utils

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"os"
)

// Checksum contains the digests recorded for an artifact
type Checksum struct {
	SHA256 string
	SHA512 string
	Size   int64
}

// Hasher computes all artifact digests in a single pass
type Hasher struct {
	sha256 hash.Hash
	sha512 hash.Hash
	size   int64
}

// NewHasher creates a Hasher
func NewHasher() *Hasher {
	return &Hasher{
		sha256: sha256.New(),
		sha512: sha512.New(),
	}
}

// Write implements io.Writer
func (h *Hasher) Write(p []byte) (int, error) {
	h.sha256.Write(p)
	h.sha512.Write(p)
	h.size += int64(len(p))
	return len(p), nil
}

// Sum returns the digests of everything written so far
func (h *Hasher) Sum() *Checksum {
	return &Checksum{
		SHA256: hex.EncodeToString(h.sha256.Sum(nil)),
		SHA512: hex.EncodeToString(h.sha512.Sum(nil)),
		Size:   h.size,
	}
}

// CalculateChecksums calculates all checksums for a file in a single pass
func CalculateChecksums(path string) (*Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := NewHasher()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}

	return h.Sum(), nil
}
