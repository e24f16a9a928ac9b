// Package text defines the reference-token data model shared by the
// tokenizer, the alignment engine, and the session controller.
//
// A Document is an ordered sequence of [Token] values produced once when a
// text is loaded. Token identity (index, surface text, normalized form,
// phonetic codes) is immutable; only the Status field changes as the reader
// progresses. Word tokens are the units the aligner reasons about —
// separator tokens (whitespace, punctuation runs) keep their original
// position so a renderer can reconstruct the full text, but they never
// change status.
package text

// Status describes the reading state of a single reference token.
type Status string

const (
	// StatusPending means the token has not been reached yet.
	StatusPending Status = "pending"

	// StatusCurrent marks the token at the committed reading position.
	StatusCurrent Status = "current"

	// StatusCorrect means the token was read and matched the expected word.
	StatusCorrect Status = "correct"

	// StatusIncorrect means a different word was heard in the token's place.
	StatusIncorrect Status = "incorrect"

	// StatusSkipped means the reader advanced past the token without a
	// matching spoken word.
	StatusSkipped Status = "skipped"
)

// IsValid reports whether s is a recognised token status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusCurrent, StatusCorrect, StatusIncorrect, StatusSkipped:
		return true
	}
	return false
}

// PhoneticCodes holds the Double Metaphone encoding of a word token.
// Both fields are empty when no code could be computed (numbers,
// single-letter tokens, non-Latin scripts).
type PhoneticCodes struct {
	Primary   string
	Secondary string
}

// Empty reports whether no phonetic code is available.
func (p PhoneticCodes) Empty() bool {
	return p.Primary == "" && p.Secondary == ""
}

// Token is a single unit of the reference text.
type Token struct {
	// Index is the token's position in the full document sequence,
	// counting word and separator tokens alike.
	Index int

	// IsWord reports whether the token participates in alignment.
	IsWord bool

	// Text is the original surface form, including casing and punctuation.
	Text string

	// Normalized is the lowercase, punctuation-stripped form used for
	// comparison against spoken words. Empty for separator tokens.
	Normalized string

	// Phonetic holds the token's Double Metaphone codes when available.
	Phonetic PhoneticCodes

	// Status is the token's current reading state. Separator tokens stay
	// [StatusPending] forever.
	Status Status
}

// Document is the fixed token sequence for one loaded text plus an index of
// its word-bearing tokens. The token slice is owned by the Document and
// mutated in place through [Document.SetStatus]; it must not be modified
// directly by callers.
type Document struct {
	tokens []Token
	words  []int // document indices of word tokens, in order
}

// NewDocument wraps tokens in a Document. Tokens without a status are
// initialised to [StatusPending]. The slice is retained, not copied.
func NewDocument(tokens []Token) *Document {
	d := &Document{tokens: tokens}
	for i := range tokens {
		if tokens[i].Status == "" {
			tokens[i].Status = StatusPending
		}
		if tokens[i].IsWord {
			d.words = append(d.words, i)
		}
	}
	return d
}

// Tokens returns the underlying token slice. Callers must treat it as
// read-only; status changes go through [Document.SetStatus].
func (d *Document) Tokens() []Token { return d.tokens }

// Len returns the total number of tokens, separators included.
func (d *Document) Len() int { return len(d.tokens) }

// WordCount returns the number of word-bearing tokens.
func (d *Document) WordCount() int { return len(d.words) }

// Word returns the word token at word position pos (0-based over the
// word-bearing subsequence only). Returns nil when pos is out of range.
func (d *Document) Word(pos int) *Token {
	if pos < 0 || pos >= len(d.words) {
		return nil
	}
	return &d.tokens[d.words[pos]]
}

// WordPos converts a document token index to its position in the
// word-bearing subsequence. Returns -1 when index does not refer to a word
// token.
func (d *Document) WordPos(index int) int {
	if index < 0 || index >= len(d.tokens) || !d.tokens[index].IsWord {
		return -1
	}
	// Binary search over the sorted word index.
	lo, hi := 0, len(d.words)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		switch {
		case d.words[mid] == index:
			return mid
		case d.words[mid] < index:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return -1
}

// SetStatus updates the status of the word token at the given document
// index. Requests for out-of-range indices, separator tokens, or invalid
// statuses are ignored; SetStatus reports whether the status was applied.
func (d *Document) SetStatus(index int, s Status) bool {
	if index < 0 || index >= len(d.tokens) || !d.tokens[index].IsWord || !s.IsValid() {
		return false
	}
	d.tokens[index].Status = s
	return true
}

// Listener receives notifications about token and pointer changes. All
// callbacks are invoked synchronously from the goroutine driving the
// session; implementations must return quickly and must not call back into
// the session. A nil Listener anywhere in the core is treated as a no-op.
type Listener interface {
	// TokenStatusChanged fires whenever a token's status is set, including
	// resets back to pending during a rollback.
	TokenStatusChanged(index int, status Status)

	// PointerMoved fires when the committed reading position changes.
	// index is the document index of the word token now at the pointer, or
	// -1 when the pointer has moved past the last word (document complete).
	PointerMoved(index int)

	// TokenAnnotated carries a human-readable note about a token, such as
	// "Error: substitution / Expected: brown / Heard: red". An empty
	// annotation clears any previous note.
	TokenAnnotated(index int, annotation string)

	// RolledBack fires after an automatic or manual backtrack, with the
	// document index range [from, to] whose tokens were reset.
	RolledBack(from, to int)
}
