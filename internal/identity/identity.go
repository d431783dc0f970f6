// Package identity computes content-based identities for raw records and
// normalizes country names into warehouse locations.
package identity

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/opensource-finance/skua/internal/domain"
)

// Hash returns the 32-hex-character content fingerprint of a raw record.
//
// The digest covers the raw field values in their source column order:
// re-ingesting the same file reproduces identical hashes, while a source
// file with reordered columns hashes differently even for logically
// identical rows. Staging metadata (source file, ingestion time) is
// excluded so the hash stays a pure function of the delivered content.
func Hash(record domain.RawRecord) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range record.Fields {
		if i > 0 {
			b.WriteByte(',')
		}
		writeJSONString(&b, f.Key)
		b.WriteByte(':')
		writeJSONString(&b, f.Value)
	}
	b.WriteByte('}')

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// writeJSONString writes s as a JSON string literal. Source fields are
// plain CSV text, so only the quote and backslash need escaping; control
// characters cannot survive csv.Reader unescaped anyway.
func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')
}
