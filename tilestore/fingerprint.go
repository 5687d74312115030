package tilestore

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprintLen is the stored hex length. 48 bits of digest keeps rows
// compact and display-friendly while staying far below collision risk for
// catalog-sized populations.
const fingerprintLen = 12

// Fingerprint computes the content identity of a tile from its raw
// thumbnail bytes. Identity follows the bytes, never the URL: thumbnail
// URLs are signed and unstable, but two tiles with identical bytes are the
// same tile regardless of where they currently sit.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}
