// Package normalizer turns raw email text into the canonical token stream the
// vectorizer was fitted on.
package normalizer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const minTokenLen = 3

var (
	emailPattern = regexp.MustCompile(`\S+@\S+`)
	urlPattern   = regexp.MustCompile(`http\S+|www\S+`)
)

// Lemmatizer reduces a lowercase word to its dictionary form.
type Lemmatizer interface {
	Lemma(word string) string
}

// Normalizer is safe for concurrent use.
type Normalizer struct {
	lemmatizer Lemmatizer
	stopwords  map[string]struct{}
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLemmatizer replaces the default English dictionary lemmatizer.
func WithLemmatizer(l Lemmatizer) Option {
	return func(n *Normalizer) { n.lemmatizer = l }
}

// WithStopwords replaces the default English stopword list.
func WithStopwords(words []string) Option {
	return func(n *Normalizer) { n.stopwords = wordSet(words) }
}

// New creates a Normalizer. Loading the default lemmatizer dictionary is the
// only step that can fail.
func New(opts ...Option) (*Normalizer, error) {
	n := &Normalizer{stopwords: wordSet(englishStopwords)}
	for _, opt := range opts {
		opt(n)
	}
	if n.lemmatizer == nil {
		l, err := newDictLemmatizer()
		if err != nil {
			return nil, fmt.Errorf("normalizer: %w", err)
		}
		n.lemmatizer = l
	}
	return n, nil
}

// Normalize cleans text in a fixed order: lowercase, strip email addresses,
// strip URLs, drop everything but a-z and whitespace, collapse whitespace,
// then drop stopwords and short tokens and lemmatize the rest.
// Whitespace is Unicode whitespace, so a no-break space ends an address or
// URL just like an ASCII space does. The result may be empty.
func (n *Normalizer) Normalize(text string) string {
	// Casers hold state, so one per call.
	text = cases.Lower(language.Und).String(text)
	// RE2's \S is ASCII-only; fold every other space to ' ' first.
	text = strings.Map(foldSpace, text)
	text = emailPattern.ReplaceAllString(text, "")
	text = urlPattern.ReplaceAllString(text, "")
	text = strings.Map(keepLetterOrSpace, text)

	words := strings.Fields(text)
	out := words[:0]
	for _, w := range words {
		if len(w) < minTokenLen {
			continue
		}
		if _, stop := n.stopwords[w]; stop {
			continue
		}
		out = append(out, n.lemmatizer.Lemma(w))
	}
	return strings.Join(out, " ")
}

// isSpace also counts the ASCII file, group, record and unit separators,
// which unicode.IsSpace leaves out.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

func foldSpace(r rune) rune {
	if isSpace(r) {
		return ' '
	}
	return r
}

func keepLetterOrSpace(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z':
		return r
	case isSpace(r):
		return ' '
	default:
		return -1
	}
}

func wordSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
