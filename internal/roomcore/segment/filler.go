package segment

import (
	"regexp"
	"strings"
)

// FillerStripper removes configured filler phrases from incoming text,
// per §4.1 step 2: at the start of the text, after sentence-ending
// punctuation, and after a comma. A filler between two words with only
// spaces around it is not stripped.
// Grounded on the teacher's isNoiseText hallucination filtering
// (internal/aws/pipeline.go), generalized from a whole-text noise classifier
// into a phrase-stripping transform.
type FillerStripper struct {
	enabled bool
	words   []string
	leading *regexp.Regexp
	inline  *regexp.Regexp
}

// NewFillerStripper builds a stripper from the configured filler word lists.
func NewFillerStripper(enabled bool, words []string) *FillerStripper {
	if len(words) == 0 {
		return &FillerStripper{enabled: enabled}
	}
	escaped := make([]string, len(words))
	for i, w := range words {
		escaped[i] = regexp.QuoteMeta(w)
	}
	alt := strings.Join(escaped, "|")
	return &FillerStripper{
		enabled: enabled,
		words:   words,
		leading: regexp.MustCompile(`(?i)^\s*(?:(?:` + alt + `)[,.]?\s+)+`),
		inline:  regexp.MustCompile(`(?i)(^|[.!?]\s+|,\s*)(?:` + alt + `)(\s*,|\b)\s*`),
	}
}

// Strip removes filler phrases from text, repeating the leading pass up to
// five times per the spec, then collapsing any resulting double spaces.
func (f *FillerStripper) Strip(text string) string {
	if !f.enabled || f.leading == nil {
		return strings.TrimSpace(text)
	}
	out := text
	for i := 0; i < 5; i++ {
		stripped := f.leading.ReplaceAllString(out, "")
		if stripped == out {
			break
		}
		out = stripped
	}
	out = f.inline.ReplaceAllString(out, "$1")
	out = collapseSpaces(out)
	return strings.TrimSpace(out)
}

var spaceRE = regexp.MustCompile(`\s{2,}`)

func collapseSpaces(s string) string {
	return spaceRE.ReplaceAllString(s, " ")
}
