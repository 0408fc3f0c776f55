package extract

import (
	"errors"
	"strconv"
	"strings"
)

var errNotNumber = errors.New("not a number")

// ParseNumber parses a numeric token written with either ',' or '.' as the
// decimal separator.
//
// Convention: spaces (including NBSP and narrow NBSP) are thousands
// separators. When both ',' and '.' occur, the one that appears last is the
// decimal separator. A separator that occurs more than once is a thousands
// separator. A single separator followed by exactly three digits is a
// thousands separator; any other single separator is decimal. Thus
// "1.234,56", "1,234.56" and "1234.56" all parse to 1234.56, "6,5" to 6.5
// and "45 000" to 45000. ParseNumberFor relaxes the three-digit rule for
// rates.
func ParseNumber(tok string) (float64, error) {
	return parseNumber(tok, false)
}

// ParseNumberFor parses tok knowing the unit it was published with. Rates
// never carry thousands groups, so for "%" and "bps" a lone separator is
// always decimal: "7.125" is 7.125, not 7125.
func ParseNumberFor(tok, unit string) (float64, error) {
	return parseNumber(tok, unit == "%" || unit == "bps")
}

func parseNumber(tok string, rate bool) (float64, error) {
	s := strings.TrimSpace(tok)
	s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "\u2009", "", "'", "").Replace(s)
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg, s = true, s[1:]
	case strings.HasPrefix(s, "\u2212"):
		neg, s = true, strings.TrimPrefix(s, "\u2212")
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if s == "" {
		return 0, errNotNumber
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != ',' && r != '.' {
			return 0, errNotNumber
		}
	}

	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')
	var decimal byte
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			decimal = ','
		} else {
			decimal = '.'
		}
	case lastComma >= 0:
		decimal = singleSeparatorRole(s, ',', rate)
	case lastDot >= 0:
		decimal = singleSeparatorRole(s, '.', rate)
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == decimal:
			b.WriteByte('.')
		}
	}
	norm := b.String()
	if norm == "" || norm == "." {
		return 0, errNotNumber
	}
	v, err := strconv.ParseFloat(norm, 64)
	if err != nil {
		return 0, errNotNumber
	}
	if neg {
		v = -v
	}
	return v, nil
}

// singleSeparatorRole decides whether sep, the only separator kind present
// in s, is a decimal separator. It returns sep when decimal, 0 otherwise.
func singleSeparatorRole(s string, sep byte, rate bool) byte {
	if strings.Count(s, string(sep)) > 1 {
		return 0
	}
	if rate {
		return sep
	}
	i := strings.IndexByte(s, sep)
	if len(s)-i-1 == 3 && i > 0 && s[0] != '0' {
		return 0
	}
	return sep
}
