package fanout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNewDetector_EmptyBasesDisablesLinguaAndUsesLexicalFallback pins the
// no-lingua configuration, which is both cheap to test and the path every
// other test in this file exercises.
func TestNewDetector_EmptyBasesDisablesLinguaAndUsesLexicalFallback(t *testing.T) {
	d := NewDetector(nil)
	assert.Nil(t, d.lingua)
}

func TestDetect_LexicalFallbackPicksStrongestMarkerLanguage(t *testing.T) {
	d := NewDetector(nil)
	assert.Equal(t, "en", d.Detect("the quick fox is here and you are there"))
	assert.Equal(t, "fr", d.Detect("le chat est sur la table et les oiseaux"))
}

func TestDetect_NoMarkersMatchedReturnsEmpty(t *testing.T) {
	d := NewDetector(nil)
	assert.Empty(t, d.Detect("xyzzy plugh qwerty"))
}

func TestMatchesBase_EmptyDetectionIsTreatedAsNoEvidence(t *testing.T) {
	d := NewDetector(nil)
	assert.True(t, d.MatchesBase("xyzzy plugh qwerty", "fr-FR"))
}

func TestMatchesBase_AgreesWhenDetectedBaseMatchesTag(t *testing.T) {
	d := NewDetector(nil)
	assert.True(t, d.MatchesBase("the quick fox is here and you are there", "en-US"))
}

func TestMatchesBase_DisagreesWhenDetectedBaseDiffersFromTag(t *testing.T) {
	d := NewDetector(nil)
	assert.False(t, d.MatchesBase("le chat est sur la table et les oiseaux", "en-US"))
}
