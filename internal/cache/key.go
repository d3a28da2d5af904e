package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
)

// samplePrefix marks curated sample entries, which are keyed by sample ID
// instead of content fingerprint so prebuilt caches survive prompt tweaks.
const samplePrefix = "sample_"

// Key identifies a cache entry. Either a content fingerprint or a sample key.
type Key string

// Fingerprint derives a cache key from the canonical text, the model
// identifier, and the extraction schema version. All three are mixed with
// length prefixes so an entry is never reused across models or schema
// versions, and so no two distinct triples can collide by concatenation.
func Fingerprint(canonicalText, modelID, schemaVersion string) Key {
	h := sha256.New()
	for _, part := range [...]string{canonicalText, modelID, schemaVersion} {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(part)))
		h.Write(n[:])
		h.Write([]byte(part))
	}
	return Key(hex.EncodeToString(h.Sum(nil)))
}

// SampleKey returns the key for a curated sample entry.
func SampleKey(sampleID string) Key {
	if strings.HasPrefix(sampleID, samplePrefix) {
		return Key(sampleID)
	}
	return Key(samplePrefix + sampleID)
}

// IsSample reports whether k identifies a curated sample entry.
func (k Key) IsSample() bool {
	return strings.HasPrefix(string(k), samplePrefix)
}
