package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// Domain prefix for result-cache keys. Version suffix enables future
// algorithm migration without colliding with old entries.
const domainResult = "quarry/result/v1"

// Key computes the content-addressed cache key for a compiled statement
// executed against a particular data source.
//
// Format: SHA256(domain + 0x00 + source + 0x00 + statement)
// The null separators prevent boundary ambiguity between fields, so
// ("ab", "c") and ("a", "bc") never produce the same key. Statement text
// is NFC-normalized first: two statements that differ only in Unicode
// composition form are the same query and must share a key.
func Key(source, statement string) string {
	h := sha256.New()
	h.Write([]byte(domainResult))
	h.Write([]byte{0x00})
	h.Write([]byte(norm.NFC.String(source)))
	h.Write([]byte{0x00})
	h.Write([]byte(norm.NFC.String(statement)))
	return hex.EncodeToString(h.Sum(nil))
}
