package utils

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HashHexLen is the length of a hex encoded 32-byte block hash or txid.
const HashHexLen = 64

// ParseHash32 decodes a 32-byte hash given as exactly 64 hex characters, with or
// without a 0x prefix. Unlike byte-count-tolerant decoders it rejects short and
// long input, since a truncated hash is never a valid block hash or txid.
func ParseHash32(hexStr string) ([32]byte, error) {
	hexStr = strings.TrimPrefix(hexStr, "0x")
	if len(hexStr) != HashHexLen {
		return [32]byte{}, fmt.Errorf("invalid hash length: want %d hex characters, got %d", HashHexLen, len(hexStr))
	}
	bytes, err := hex.DecodeString(hexStr)
	if err != nil {
		return [32]byte{}, fmt.Errorf("invalid hash: %w", err)
	}
	var result [32]byte
	copy(result[:], bytes)
	return result, nil
}

// IsHash32 reports whether s is a valid hex encoded 32-byte hash.
func IsHash32(s string) bool {
	_, err := ParseHash32(s)
	return err == nil
}

// ShortHash abbreviates a hash for log output, keeping n characters on each side.
func ShortHash(s string, n int) string {
	if n <= 0 || len(s) <= 2*n+3 {
		return s
	}
	return s[:n] + "..." + s[len(s)-n:]
}
