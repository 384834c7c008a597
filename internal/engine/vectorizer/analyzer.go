package vectorizer

import (
	"fmt"
	"regexp"
	"strings"
)

// defaultTokenPattern keeps runs of two or more word characters.
const defaultTokenPattern = `(?u)\b\w\w+\b`

// analyzer splits text into the terms counted by the vectorizer: tokens
// matched by the fitted pattern, minus stop words, expanded to word n-grams.
type analyzer struct {
	pattern   *regexp.Regexp
	group     bool // use the first capture group instead of the whole match
	lowercase bool
	stopwords map[string]struct{}
	minN      int
	maxN      int
}

func newAnalyzer(pattern string, lowercase bool, stopwords []string, ngram [2]int) (*analyzer, error) {
	if pattern == "" {
		pattern = defaultTokenPattern
	}
	// RE2 has no (?u) flag; its \w and \b are ASCII, which is all
	// normalized text contains.
	pattern = strings.ReplaceAll(pattern, "(?u)", "")
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("analyzer: token pattern: %w", err)
	}
	if re.NumSubexp() > 1 {
		return nil, fmt.Errorf("analyzer: token pattern %q has more than one capture group", pattern)
	}

	minN, maxN := ngram[0], ngram[1]
	if minN == 0 && maxN == 0 {
		minN, maxN = 1, 1
	}
	if minN < 1 || maxN < minN {
		return nil, fmt.Errorf("analyzer: invalid ngram range [%d, %d]", ngram[0], ngram[1])
	}

	var stop map[string]struct{}
	if len(stopwords) > 0 {
		stop = make(map[string]struct{}, len(stopwords))
		for _, w := range stopwords {
			stop[w] = struct{}{}
		}
	}

	return &analyzer{
		pattern:   re,
		group:     re.NumSubexp() == 1,
		lowercase: lowercase,
		stopwords: stop,
		minN:      minN,
		maxN:      maxN,
	}, nil
}

// tokenize applies the token pattern and drops stop words.
func (a *analyzer) tokenize(text string) []string {
	if a.lowercase {
		text = strings.ToLower(text)
	}

	var tokens []string
	if a.group {
		for _, m := range a.pattern.FindAllStringSubmatch(text, -1) {
			tokens = append(tokens, m[1])
		}
	} else {
		tokens = a.pattern.FindAllString(text, -1)
	}

	if a.stopwords == nil {
		return tokens
	}
	out := tokens[:0]
	for _, tok := range tokens {
		if _, stop := a.stopwords[tok]; !stop {
			out = append(out, tok)
		}
	}
	return out
}

// analyze returns every term (unigram or space-joined n-gram) in text.
func (a *analyzer) analyze(text string) []string {
	tokens := a.tokenize(text)
	if a.maxN == 1 {
		return tokens
	}

	var terms []string
	minN := a.minN
	if minN == 1 {
		terms = append(terms, tokens...)
		minN = 2
	}
	for n := minN; n <= a.maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}
