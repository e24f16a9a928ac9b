// Package similarity scores how closely a spoken word matches a reference
// word. The textual score is normalised Levenshtein distance; when phonetic
// codes are available for both sides, a Double Metaphone comparison is
// blended in so that words that sound alike score well even when their
// spellings diverge (e.g. "there" vs "their").
//
// Scoring is pure and deterministic: no state, no side effects, and empty
// inputs are handled without error.
package similarity

import (
	"github.com/antzucaro/matchr"

	"github.com/readpace/readpace/pkg/text"
)

// Text returns 1 − normalised Levenshtein distance between a and b, in
// [0, 1]. The distance is normalised by the length of the longer string;
// two empty strings are identical and score 1.
func Text(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	d := matchr.Levenshtein(a, b)
	if d > longest {
		d = longest
	}
	return 1 - float64(d)/float64(longest)
}

// Scorer combines textual and phonetic similarity. The zero value scores
// text only; enable the phonetic blend with [Scorer.SetPhonetic].
type Scorer struct {
	phonetic bool
	weight   float64
}

// NewScorer returns a Scorer. When phonetic is true, weight (in [0, 1])
// controls how much the phonetic score contributes to the blended result.
func NewScorer(phonetic bool, weight float64) *Scorer {
	s := &Scorer{}
	s.SetPhonetic(phonetic, weight)
	return s
}

// SetPhonetic enables or disables the phonetic blend. weight is clamped to
// [0, 1].
func (s *Scorer) SetPhonetic(enabled bool, weight float64) {
	s.phonetic = enabled
	if weight < 0 {
		weight = 0
	}
	if weight > 1 {
		weight = 1
	}
	s.weight = weight
}

// Enabled reports whether the phonetic blend is active.
func (s *Scorer) Enabled() bool { return s.phonetic }

// Weight returns the current phonetic blend weight.
func (s *Scorer) Weight() float64 { return s.weight }

// Score returns the similarity between a spoken word and a reference word
// in [0, 1]. ac and bc are the precomputed phonetic codes of each side; when
// either is empty, or the phonetic blend is disabled, the result is the
// plain textual score.
//
// The phonetic score can only help, never hurt: the result is the maximum
// of the textual score and the weighted blend.
func (s *Scorer) Score(a string, ac text.PhoneticCodes, b string, bc text.PhoneticCodes) float64 {
	ts := Text(a, b)
	if !s.phonetic || ac.Empty() || bc.Empty() {
		return ts
	}

	ps := phoneticScore(ac, bc)
	blended := (1-s.weight)*ts + s.weight*ps
	if blended > ts {
		return blended
	}
	return ts
}

// phoneticScore compares two code pairs: 1 when any code matches exactly,
// otherwise the best pairwise textual similarity between the codes.
func phoneticScore(a, b text.PhoneticCodes) float64 {
	best := 0.0
	for _, ca := range []string{a.Primary, a.Secondary} {
		if ca == "" {
			continue
		}
		for _, cb := range []string{b.Primary, b.Secondary} {
			if cb == "" {
				continue
			}
			if ca == cb {
				return 1
			}
			if s := Text(ca, cb); s > best {
				best = s
			}
		}
	}
	return best
}
