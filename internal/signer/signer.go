package signer

import "io"

// Signer signs stored package artifacts
type Signer interface {
	// SignDetached creates an armored detached signature of r
	SignDetached(r io.Reader) ([]byte, error)

	// GetPublicKey returns the armored public key
	GetPublicKey() ([]byte, error)
}
