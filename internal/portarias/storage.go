package portarias

import (
	"fmt"
	"path"
	"strings"
)

// GenerateS3Key builds the object key of a rendered portaria. The hash prefix
// keeps every rendition under its own key.
func GenerateS3Key(p *Portaria, hash string, ano int) string {
	prefix := hash
	if len(prefix) > 16 {
		prefix = prefix[:16]
	}
	scope := sanitizeSegment(p.SecretariaID)
	if p.SetorID != "" {
		scope = path.Join(scope, sanitizeSegment(p.SetorID))
	}
	return fmt.Sprintf("portarias/%s/%d/%s/%s.pdf", scope, ano, p.ID, prefix)
}

func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
