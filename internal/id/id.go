package id

import (
	"crypto/rand"
	"encoding/hex"
)

// New returns a random hex request id for log and trace correlation.
func New() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "req-fallback-id"
	}
	return hex.EncodeToString(b[:])
}
