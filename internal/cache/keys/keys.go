// Package keys builds the Redis keys encoded GeoJSON collections live under.
package keys

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Version is bumped whenever the encoded collection format changes so old
// entries are never served.
const Version = "v1"

const prefix = "geojson"

// Layer is the key of a layer's full collection: geojson:{layer}:v1.
func Layer(layer string) string {
	return fmt.Sprintf("%s:%s:%s", prefix, sanitize(strings.TrimSpace(layer)), Version)
}

// Filtered is the key of a collection narrowed by one attribute. The raw
// value is hashed so different values never collide after sanitizing.
func Filtered(layer, attr, value string) string {
	safe := sanitize(strings.TrimSpace(value))
	const maxLen = 80
	if len(safe) > maxLen {
		safe = safe[:maxLen]
	}
	return fmt.Sprintf("%s:%s=%s:f=%016x", Layer(layer), sanitize(attr), safe, xxhash.Sum64String(attr+"\x00"+value))
}

// Gen is the counter Invalidate bumps. It sits outside Pattern so deleting a
// layer's entries never resets it.
func Gen(layer string) string {
	return fmt.Sprintf("%s:%s:gen", prefix, sanitize(strings.TrimSpace(layer)))
}

// AtGen tags a Layer or Filtered key with the generation it was loaded under.
func AtGen(key string, gen int64) string {
	return key + ":g" + strconv.FormatInt(gen, 10)
}

// Pattern matches every generation of a layer's full and filtered keys for
// SCAN.
func Pattern(layer string) string {
	return Layer(layer) + ":*"
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-':
			out = r
		default:
			// any other rune, including ':' '*' and non-ASCII, becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
