// Package tokenizer wraps the kagome morphological analyzer for Japanese
// text. It produces tokens carrying both the surface form (as written) and
// the dictionary base form, so conjugated text can be matched by
// base-form queries.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ikawaha/kagome-dict/ipa"
	kagome "github.com/ikawaha/kagome/v2/tokenizer"

	kerrors "github.com/kensakudev/kensaku/internal/errors"
)

// Token is a single morpheme produced by analysis.
type Token struct {
	// Surface is the token text exactly as it appears in the input.
	Surface string
	// Base is the dictionary form (走っ → 走る). Falls back to Surface
	// for unknown words.
	Base string
	// ByteOffset is the byte position of Surface in the original text.
	ByteOffset int
}

// Tokenizer analyzes Japanese text with the IPA dictionary.
// Safe for concurrent use.
type Tokenizer struct {
	t *kagome.Tokenizer
}

// New creates a Tokenizer backed by the embedded IPA dictionary.
func New() (*Tokenizer, error) {
	t, err := kagome.New(ipa.Dict(), kagome.OmitBosEos())
	if err != nil {
		return nil, kerrors.New(kerrors.ErrCodeDictionaryLoad, "failed to load IPA dictionary", err)
	}
	return &Tokenizer{t: t}, nil
}

// Tokenize analyzes text in search mode, which splits compound words for
// better recall. Whitespace-only morphemes are dropped. Returns an empty
// slice for empty input, and ErrCodeInvalidEncoding for invalid UTF-8.
func (tk *Tokenizer) Tokenize(text string) ([]Token, error) {
	if text == "" {
		return nil, nil
	}
	if !utf8.ValidString(text) {
		return nil, kerrors.New(kerrors.ErrCodeInvalidEncoding, "text is not valid UTF-8", nil)
	}

	morphemes := tk.t.Analyze(text, kagome.Search)

	tokens := make([]Token, 0, len(morphemes))
	// Kagome reports character positions, not byte offsets. Surfaces come
	// back in input order, so a forward scan recovers the byte offset of
	// each one.
	cursor := 0
	for _, m := range morphemes {
		surface := m.Surface
		if surface == "" || isWhitespace(surface) {
			continue
		}

		idx := strings.Index(text[cursor:], surface)
		if idx < 0 {
			// Analyzer output diverged from the input; skip rather than
			// report a bogus offset.
			continue
		}
		offset := cursor + idx
		cursor = offset + len(surface)

		base := surface
		if b, ok := m.BaseForm(); ok && b != "" && b != "*" {
			base = b
		}

		tokens = append(tokens, Token{
			Surface:    surface,
			Base:       base,
			ByteOffset: offset,
		})
	}

	return tokens, nil
}

// Surfaces returns the surface forms of tokens in order.
func Surfaces(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Surface
	}
	return out
}

// Terms returns the base forms of tokens in order. These are what gets
// indexed and matched.
func Terms(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Base
	}
	return out
}

// JoinSurfaces joins surface forms with single spaces, the stored form of
// document content.
func JoinSurfaces(tokens []Token) string {
	return strings.Join(Surfaces(tokens), " ")
}

// JoinTerms joins base forms with single spaces, the indexed form of
// document content.
func JoinTerms(tokens []Token) string {
	return strings.Join(Terms(tokens), " ")
}

func isWhitespace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
