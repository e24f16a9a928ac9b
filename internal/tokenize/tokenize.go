// Package tokenize turns a reference text into the classified token
// sequence the alignment engine runs against.
//
// Words are maximal runs of letters, digits, and word-internal apostrophes
// or hyphens ("don't", "well-known" stay single tokens). Everything between
// two words — whitespace, punctuation, line breaks — is preserved as one
// separator token so a renderer can reconstruct the original text exactly.
// Each word token carries a lowercase punctuation-stripped normalized form
// and its Double Metaphone codes.
package tokenize

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/readpace/readpace/pkg/text"
)

// Parse tokenizes input into a [text.Document]. Empty input yields an empty
// document.
func Parse(input string) *text.Document {
	var tokens []text.Token
	runes := []rune(input)

	i := 0
	for i < len(runes) {
		start := i
		if isWordRune(runes[i]) {
			for i < len(runes) && (isWordRune(runes[i]) || isJoiner(runes, i)) {
				i++
			}
			surface := string(runes[start:i])
			norm := Normalize(surface)
			tok := text.Token{
				Index:      len(tokens),
				IsWord:     norm != "",
				Text:       surface,
				Normalized: norm,
				Status:     text.StatusPending,
			}
			if tok.IsWord {
				p, s := matchr.DoubleMetaphone(norm)
				tok.Phonetic = text.PhoneticCodes{Primary: p, Secondary: s}
			}
			tokens = append(tokens, tok)
			continue
		}
		for i < len(runes) && !isWordRune(runes[i]) {
			i++
		}
		tokens = append(tokens, text.Token{
			Index:  len(tokens),
			Text:   string(runes[start:i]),
			Status: text.StatusPending,
		})
	}

	return text.NewDocument(tokens)
}

// Normalize lowercases s and strips every rune that is not a letter or
// digit. Returns "" when nothing survives (pure punctuation).
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isWordRune reports whether r can start or continue a word token.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// isJoiner reports whether the rune at position i joins two word runes
// (apostrophe or hyphen with word characters on both sides).
func isJoiner(runes []rune, i int) bool {
	r := runes[i]
	if r != '\'' && r != '’' && r != '-' {
		return false
	}
	return i > 0 && isWordRune(runes[i-1]) &&
		i+1 < len(runes) && isWordRune(runes[i+1])
}
