package peek

import "regexp"

// Gender is the dominant gender signal detected in a span of text.
type Gender string

const (
	GenderNone   Gender = ""
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type markerSet struct {
	male   *regexp.Regexp
	female *regexp.Regexp
	// ambiguous matches third-person pronouns whose gender is not yet resolved.
	ambiguous *regexp.Regexp
}

// markers holds the language-specific regex sets (titles, gendered pronouns,
// gendered nouns) used for gender-marker detection (§4.3). Only the language
// bases the relay's default config ships with are seeded; unknown bases
// simply never trigger a peek revision.
var markers = map[string]markerSet{
	"en": {
		male:      regexp.MustCompile(`(?i)\b(he|him|his|mr\.?|sir|king|husband|father|son|brother|actor|waiter)\b`),
		female:    regexp.MustCompile(`(?i)\b(she|her|hers|mrs\.?|ms\.?|madam|queen|wife|mother|daughter|sister|actress|waitress)\b`),
		ambiguous: regexp.MustCompile(`(?i)\b(they|them|their|the person|the speaker)\b`),
	},
	"fr": {
		male:      regexp.MustCompile(`(?i)\b(il|lui|monsieur|m\.|roi|mari|père|fils|frère|acteur)\b`),
		female:    regexp.MustCompile(`(?i)\b(elle|madame|mme\.?|reine|femme|mère|fille|sœur|actrice)\b`),
		ambiguous: regexp.MustCompile(`(?i)\b(iel|la personne|le locuteur)\b`),
	},
}

// DetectGender reports the dominant gender signal in text for the given
// language base, and its confidence (dominant_count / (female+male counts)).
// Equal non-zero counts yield (GenderNone, 0.5); no markers at all, or a
// language without a marker table, yield (GenderNone, 0).
func DetectGender(langBase string, text string) (Gender, float64) {
	m, ok := markers[langBase]
	if !ok {
		return GenderNone, 0
	}
	male := len(m.male.FindAllString(text, -1))
	female := len(m.female.FindAllString(text, -1))
	total := male + female
	if total == 0 {
		return GenderNone, 0
	}
	if male == female {
		return GenderNone, 0.5
	}
	if male > female {
		return GenderMale, float64(male) / float64(total)
	}
	return GenderFemale, float64(female) / float64(total)
}

// HasAmbiguousPronoun reports whether text contains at least one
// language-specific ambiguous third-person pronoun.
func HasAmbiguousPronoun(langBase string, text string) bool {
	m, ok := markers[langBase]
	if !ok {
		return false
	}
	return m.ambiguous.MatchString(text)
}
