package pipeline

import (
	"fmt"
	"strings"

	"github.com/dunamismax/pixelgrade/internal/domain"
)

const fallbackBaseName = "image"

// OutputName replaces the extension of name with the format's. A leading dot
// does not start an extension, so ".hidden" becomes ".hidden.png".
func OutputName(name string, format domain.Format) string {
	base := sanitizeFileName(name)
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	if strings.TrimSpace(base) == "" {
		base = fallbackBaseName
	}
	return base + "." + format.Extension()
}

// NameSet hands out unique file names, suffixing " (2)", " (3)" and so on
// before the extension. Names compare case-insensitively.
type NameSet struct {
	seen map[string]struct{}
}

func NewNameSet() *NameSet {
	return &NameSet{seen: make(map[string]struct{})}
}

func (s *NameSet) Unique(name string) string {
	if _, taken := s.seen[strings.ToLower(name)]; !taken {
		s.seen[strings.ToLower(name)] = struct{}{}
		return name
	}

	stem, ext := name, ""
	if i := strings.LastIndex(name, "."); i > 0 {
		stem, ext = name[:i], name[i:]
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if _, taken := s.seen[strings.ToLower(candidate)]; !taken {
			s.seen[strings.ToLower(candidate)] = struct{}{}
			return candidate
		}
	}
}

// sanitizeFileName keeps the name a single path element.
func sanitizeFileName(in string) string {
	in = strings.TrimSpace(in)

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r == '/' || r == '\\':
			b.WriteRune('_')
		case r < 0x20 || r == 0x7f:
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	out := b.String()
	if out == "." || out == ".." {
		return fallbackBaseName
	}
	return out
}
