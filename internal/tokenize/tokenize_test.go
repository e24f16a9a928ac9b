package tokenize_test

import (
	"strings"
	"testing"

	"github.com/readpace/readpace/internal/tokenize"
	"github.com/readpace/readpace/pkg/text"
)

func TestParseRoundTripsSurfaceText(t *testing.T) {
	t.Parallel()
	input := "The quick, brown fox — jumps!\nOver the lazy dog."
	doc := tokenize.Parse(input)

	var b strings.Builder
	for _, tok := range doc.Tokens() {
		b.WriteString(tok.Text)
	}
	if got := b.String(); got != input {
		t.Errorf("concatenated tokens = %q, want original input %q", got, input)
	}
}

func TestParseClassifiesTokens(t *testing.T) {
	t.Parallel()
	doc := tokenize.Parse("Don't stop, well-known reader.")

	words := make([]string, 0, doc.WordCount())
	for pos := 0; ; pos++ {
		tok := doc.Word(pos)
		if tok == nil {
			break
		}
		words = append(words, tok.Normalized)
	}

	want := []string{"dont", "stop", "wellknown", "reader"}
	if len(words) != len(want) {
		t.Fatalf("got %d words %v, want %d %v", len(words), words, len(want), want)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Errorf("word %d = %q, want %q", i, words[i], want[i])
		}
	}
}

func TestParsePhoneticCodes(t *testing.T) {
	t.Parallel()
	doc := tokenize.Parse("brown")
	tok := doc.Word(0)
	if tok == nil {
		t.Fatal("Word(0) = nil")
	}
	if tok.Phonetic.Empty() {
		t.Error("word token has no phonetic codes")
	}
	if tok.Status != text.StatusPending {
		t.Errorf("initial status = %q, want %q", tok.Status, text.StatusPending)
	}
}

func TestParseEmptyInput(t *testing.T) {
	t.Parallel()
	doc := tokenize.Parse("")
	if doc.Len() != 0 || doc.WordCount() != 0 {
		t.Errorf("empty input produced %d tokens, %d words", doc.Len(), doc.WordCount())
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want string
	}{
		{in: "Hello!", want: "hello"},
		{in: "don't", want: "dont"},
		{in: "WELL-known", want: "wellknown"},
		{in: "...", want: ""},
		{in: "Ça", want: "ça"},
		{in: "42nd", want: "42nd"},
	}
	for _, tc := range cases {
		if got := tokenize.Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
