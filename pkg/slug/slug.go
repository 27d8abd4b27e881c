package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)
	// Letters that do not decompose into base + mark.
	special = strings.NewReplacer("ı", "i", "ø", "o", "ß", "ss", "æ", "ae", "œ", "oe", "ł", "l", "&", " and ")
)

// Generate creates a URL-friendly slug from a product name. Accented letters
// are folded to ASCII and apostrophes are dropped.
//
// Examples:
//   - "Vintage Leather Wallet" → "vintage-leather-wallet"
//   - "Men's Running Shoes" → "mens-running-shoes"
//   - "Café Crème Mug" → "cafe-creme-mug"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = special.Replace(s)
	s = strings.NewReplacer("'", "", "’", "").Replace(s)

	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err == nil {
		s = folded
	}

	s = slugRegexp.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
