// Package tokens manages the upstream credentials this engine provisions,
// one per (provider, group) pair. Token names are deterministic and
// length-bounded so runs converge instead of accumulating credentials.
package tokens

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/agentstation/gatesync/pkg/constants"
)

// sanitizer decomposes accented characters and strips the combining marks,
// so "café" survives as "cafe" rather than being dropped wholesale.
var sanitizer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Sanitize reduces a group name to the ASCII subset upstreams accept in
// token names. Characters with no ASCII decomposition are removed.
func Sanitize(name string) string {
	decomposed, _, err := transform.String(sanitizer, name)
	if err != nil {
		decomposed = name
	}

	var b strings.Builder
	for _, r := range decomposed {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Name computes the deterministic token name for a group: the sanitized
// group name truncated so name+suffix fits the upstream's length bound, with
// the provider suffix appended. Sanitization can collide distinct groups
// onto one name; taken disambiguates with a numeric insert on a
// first-seen-wins basis and is updated with the returned name.
func Name(group, suffix string, taken map[string]bool) string {
	base := Sanitize(group)
	if base == "" {
		base = "group"
	}

	// A suffix at or over the length bound leaves no room for the group
	// part; the name degenerates to the suffix alone rather than panicking.
	limit := constants.MaxTokenNameLength - len(suffix)
	if limit < 0 {
		limit = 0
	}
	if len(base) > limit {
		base = base[:limit]
	}

	name := base + suffix
	for n := 1; taken[name]; n++ {
		insert := fmt.Sprintf("%d", n)
		trimmed := base
		if len(trimmed)+len(insert) > limit {
			cut := limit - len(insert)
			if cut < 0 {
				cut = 0
			}
			trimmed = trimmed[:cut]
		}
		name = trimmed + insert + suffix
	}
	taken[name] = true
	return name
}

// NormalizeKey ensures a token secret carries the conventional key prefix.
func NormalizeKey(key string) string {
	if key == "" || strings.HasPrefix(key, "sk-") {
		return key
	}
	return "sk-" + key
}
