package numbering

import (
	"fmt"
	"strings"

	"docs-cataguases/portal-backend/internal/apperrors"
)

// ValidatePattern checks that pattern has at least one run of X.
func ValidatePattern(pattern string) error {
	if !strings.Contains(pattern, "X") {
		return apperrors.Validation("format %q has no sequence placeholder", pattern)
	}
	return nil
}

// Format renders seq and year into pattern. A run of X becomes the sequence
// zero-padded to the run length, YYYY the four digit year and YY its last two
// digits. A lone Y is kept as is. Other characters are copied.
func Format(pattern string, seq, year int) (string, error) {
	if err := ValidatePattern(pattern); err != nil {
		return "", err
	}
	if seq < 1 {
		return "", apperrors.Validation("sequence must be positive, got %d", seq)
	}

	var b strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); {
		j := i
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		n := j - i

		switch runes[i] {
		case 'X':
			b.WriteString(fmt.Sprintf("%0*d", n, seq))
		case 'Y':
			b.WriteString(formatYear(year, n))
		default:
			b.WriteString(string(runes[i:j]))
		}
		i = j
	}
	return b.String(), nil
}

func formatYear(year, width int) string {
	switch {
	case width >= 4:
		return fmt.Sprintf("%0*d", width, year)
	case width >= 2:
		return fmt.Sprintf("%02d", year%100)
	default:
		return strings.Repeat("Y", width)
	}
}
