package ranker

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Tokenizer splits a document into the terms of the vector space.
type Tokenizer interface {
	Tokenize(text string) ([]string, error)
}

// minTokenRunes drops one-character tokens, like the usual `\w\w+` pattern.
const minTokenRunes = 2

// WordTokenizer splits on anything that is not a letter, digit, mark or
// underscore. It applies no stop-word list.
type WordTokenizer struct{}

// Tokenize implements Tokenizer.
func (WordTokenizer) Tokenize(text string) ([]string, error) {
	text = strings.ToLower(NormalizeText(text))
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTokenRunes {
			out = append(out, f)
		}
	}
	return out, nil
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// SubwordTokenizer uses a HuggingFace tokenizer.json so that inflected or
// agglutinated queries still share terms with product texts.
type SubwordTokenizer struct {
	mu sync.Mutex
	tk *tokenizer.Tokenizer
}

// NewSubwordTokenizer loads a tokenizer.json file.
func NewSubwordTokenizer(path string) (*SubwordTokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}
	return &SubwordTokenizer{tk: tk}, nil
}

// Tokenize implements Tokenizer.
func (s *SubwordTokenizer) Tokenize(text string) ([]string, error) {
	text = strings.ToLower(NormalizeText(text))
	if text == "" {
		return nil, nil
	}
	s.mu.Lock()
	enc, err := s.tk.EncodeSingle(text, false)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	out := make([]string, 0, len(enc.Tokens))
	for _, tok := range enc.Tokens {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out, nil
}
