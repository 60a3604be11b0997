package fitlog

import (
	"crypto/sha256"
	"encoding/hex"
)

// FileHash returns the lowercase hex SHA-256 of data.
func FileHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
