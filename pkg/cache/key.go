package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key derives a deterministic cache key from a query and its context.
// The query is lowercased and trimmed before hashing, so logically
// identical requests always map to the same key.
func Key(query, language, area string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	composite := normalized + "|" + language + "|" + area
	sum := sha256.Sum256([]byte(composite))
	return hex.EncodeToString(sum[:])
}
