package segment

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// normalizeKeepLen NFC-normalizes text first — so a precomposed "é" from one
// STT partial compares equal to a decomposed "e´" from the next, regardless
// of which form the provider emitted — then lowercases and maps punctuation
// to spaces without collapsing runs, so normalized and raw runes stay
// index-aligned against the NFC form. spliceContinuation slices the same
// NFC form back onto the splice point, so the alignment holds end to end.
func normalizeKeepLen(text string) []rune {
	runes := []rune(norm.NFC.String(text))
	out := make([]rune, len(runes))
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			out[i] = unicode.ToLower(r)
		default:
			out[i] = ' '
		}
	}
	return out
}

// continuationOverlap computes the ≥80% normalized-prefix-overlap test from
// §4.1 step 4: ratio = matching-prefix-length / max(len(normalizedPrev), 1).
func continuationOverlap(prevText, incomingText string) (ratio float64, prefixLen int) {
	normPrev := normalizeKeepLen(prevText)
	normIncoming := normalizeKeepLen(incomingText)

	n := 0
	for n < len(normPrev) && n < len(normIncoming) && normPrev[n] == normIncoming[n] {
		n++
	}

	denom := len(normPrev)
	if denom == 0 {
		denom = 1
	}
	return float64(n) / float64(denom), n
}

// spliceContinuation implements §4.1 step 4's merge: the incoming text's
// rune-indexed tail past the matching prefix is appended to the current
// canonical text, preserving the incoming text's original casing/punctuation
// in the spliced portion.
func spliceContinuation(prevText, incomingText string) string {
	_, prefixLen := continuationOverlap(prevText, incomingText)
	incomingRunes := []rune(norm.NFC.String(incomingText))
	if prefixLen >= len(incomingRunes) {
		return prevText
	}
	tail := strings.TrimLeft(string(incomingRunes[prefixLen:]), " ")
	if tail == "" {
		return prevText
	}
	return strings.TrimRight(prevText, " ") + " " + tail
}
