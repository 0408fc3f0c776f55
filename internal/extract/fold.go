package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases s, strips diacritics, unifies apostrophes and collapses
// whitespace, so that "Taux d’intérêt" and "taux d'interet" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.ToLower(out)
	out = strings.NewReplacer("\u2019", "'", "\u2018", "'", "`", "'", "\u00a0", " ", "\u202f", " ").Replace(out)
	return strings.Join(strings.Fields(out), " ")
}

// containsWord reports whether folded text contains kw starting at a word
// boundary. Both arguments must already be folded.
func containsWord(text, kw string) bool {
	if kw == "" {
		return false
	}
	padded := " " + text + " "
	for _, lead := range []string{" ", "'", "(", "/", "-"} {
		if strings.Contains(padded, lead+kw) {
			return true
		}
	}
	return false
}

// HasWord reports whether folded text contains kw as a whole word. Both
// arguments must already be folded.
func HasWord(text, kw string) bool {
	if kw == "" {
		return false
	}
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], kw)
		if i < 0 {
			return false
		}
		i += from
		end := i + len(kw)
		before, _ := utf8.DecodeLastRuneInString(text[:i])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (i == 0 || !isWordRune(before)) && (end == len(text) || !isWordRune(after)) {
			return true
		}
		from = i + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
