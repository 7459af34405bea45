package sheet

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// ErrUnsupportedPattern is returned by DateLayout for pattern letters
// that have no Go layout equivalent.
var ErrUnsupportedPattern = errors.New("unsupported date pattern")

// Locale controls locale-dependent parsing of cell text.
type Locale struct {
	Tag     language.Tag
	Decimal byte
}

// Languages whose number formatting uses a decimal comma.
var decimalComma = map[string]bool{
	"de": true, "fr": true, "es": true, "it": true, "pt": true, "nl": true,
	"ru": true, "pl": true, "tr": true, "id": true, "sv": true, "da": true,
	"fi": true, "nb": true, "cs": true, "sk": true, "ro": true, "uk": true,
}

// ParseLocale parses a BCP-47 tag such as "en", "fr-FR" or "pt_BR".
func ParseLocale(s string) (Locale, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "-")
	if s == "" {
		s = "en"
	}
	tag, err := language.Parse(s)
	if err != nil {
		return Locale{}, fmt.Errorf("parse locale %q: %w", s, err)
	}
	base, _ := tag.Base()
	loc := Locale{Tag: tag, Decimal: '.'}
	if decimalComma[base.String()] {
		loc.Decimal = ','
	}
	return loc, nil
}

// DateLayout converts a date pattern in the style used by the banking API
// ("dd MMMM yyyy", "yyyy-MM-dd", "dd/MM/yy") into a Go time layout.
// Text inside single quotes is copied literally.
func DateLayout(pattern string) (string, error) {
	if strings.TrimSpace(pattern) == "" {
		return "", fmt.Errorf("%w: empty pattern", ErrUnsupportedPattern)
	}

	var b strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); {
		c := runes[i]

		if c == '\'' {
			j := i + 1
			for j < len(runes) && runes[j] != '\'' {
				j++
			}
			b.WriteString(string(runes[i+1 : min(j, len(runes))]))
			i = j + 1
			continue
		}

		if !isLetter(c) {
			b.WriteRune(c)
			i++
			continue
		}

		n := 1
		for i+n < len(runes) && runes[i+n] == c {
			n++
		}
		tok, ok := layoutToken(c, n)
		if !ok {
			return "", fmt.Errorf("%w: %q in %q", ErrUnsupportedPattern, strings.Repeat(string(c), n), pattern)
		}
		b.WriteString(tok)
		i += n
	}
	return b.String(), nil
}

func layoutToken(c rune, n int) (string, bool) {
	switch c {
	case 'y', 'u':
		if n == 2 {
			return "06", true
		}
		return "2006", true
	case 'M', 'L':
		switch {
		case n >= 4:
			return "January", true
		case n == 3:
			return "Jan", true
		case n == 2:
			return "01", true
		default:
			return "1", true
		}
	case 'd':
		if n >= 2 {
			return "02", true
		}
		return "2", true
	case 'E':
		if n >= 4 {
			return "Monday", true
		}
		return "Mon", true
	case 'H':
		return "15", true
	case 'h':
		if n >= 2 {
			return "03", true
		}
		return "3", true
	case 'm':
		return "04", true
	case 's':
		return "05", true
	case 'a':
		return "PM", true
	}
	return "", false
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
