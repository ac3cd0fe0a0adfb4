package ticket

import (
	"crypto/rand"
	"encoding/hex"
)

// NewToken generates an opaque random token for tickets and invites.
func NewToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
