package fanout

import (
	"strings"

	"github.com/kgr0831/relay/internal/roomcore"
	"github.com/pemistahl/lingua-go"
)

// Detector is the heuristic text-language detector from §4.5: a base-code
// classifier used both for mislabel defense (broadcast override) and TTS
// gating (defense against untranslated fallthrough). Grounded on
// aimuz-transy's use of pemistahl/lingua-go, with a small closed-set lexical
// fallback for languages lingua-go is not configured with or returns no
// confident guess for.
type Detector struct {
	lingua lingua.LanguageDetector
}

// knownLanguages maps the base codes this relay ships default config for
// onto lingua-go's exported Language constants.
var knownLanguages = map[string]lingua.Language{
	"en": lingua.English,
	"fr": lingua.French,
	"es": lingua.Spanish,
	"de": lingua.German,
	"it": lingua.Italian,
	"pt": lingua.Portuguese,
	"ja": lingua.Japanese,
	"ko": lingua.Korean,
	"zh": lingua.Chinese,
}

// NewDetector builds a Detector configured over the given autodetect
// language bases (e.g. "en", "fr", "es"); an empty set disables lingua-go
// and falls back to the lexical heuristic only.
func NewDetector(autoDetectBases []string) *Detector {
	langs := make([]lingua.Language, 0, len(autoDetectBases))
	for _, base := range autoDetectBases {
		if l, ok := knownLanguages[strings.ToLower(base)]; ok {
			langs = append(langs, l)
		}
	}
	if len(langs) == 0 {
		return &Detector{}
	}
	d := lingua.NewLanguageDetectorBuilder().
		FromLanguages(langs...).
		WithMinimumRelativeDistance(0.25).
		Build()
	return &Detector{lingua: d}
}

// strongMarkers are the closed-set lexical fallback per language base,
// mirroring §4.5's description ("strong lexical markers and contractions").
var strongMarkers = map[string][]string{
	"en": {" the ", " is ", " are ", " was ", " you ", "'re ", "'ve "},
	"fr": {" le ", " la ", " les ", " est ", " et ", " vous ", " c'est", " qu'"},
	"es": {" el ", " la ", " es ", " y ", " que ", " los "},
	"de": {" der ", " die ", " das ", " und ", " ist "},
}

// Detect returns a base language code (e.g. "fr") or "" when unknown.
func (d *Detector) Detect(text string) string {
	if d.lingua != nil {
		if lang, ok := d.lingua.DetectLanguageOf(text); ok {
			return strings.ToLower(lang.IsoCode639_1().String())
		}
	}
	return d.lexicalFallback(text)
}

func (d *Detector) lexicalFallback(text string) string {
	padded := " " + strings.ToLower(text) + " "
	best := ""
	bestCount := 0
	for base, markers := range strongMarkers {
		count := 0
		for _, m := range markers {
			count += strings.Count(padded, m)
		}
		if count > bestCount {
			bestCount = count
			best = base
		}
	}
	if bestCount == 0 {
		return ""
	}
	return best
}

// MatchesBase reports whether the detected language of text agrees with
// langTag's base subtag; an empty detector result is treated as "unknown",
// which callers interpret as "no mislabel evidence".
func (d *Detector) MatchesBase(text, langTag string) bool {
	detected := d.Detect(text)
	if detected == "" {
		return true
	}
	return detected == roomcore.LangBase(langTag)
}
