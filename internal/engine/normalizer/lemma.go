package normalizer

import (
	"strings"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
)

// dictLemmatizer looks words up in the embedded English dictionary. Words
// missing from the dictionary are returned unchanged.
type dictLemmatizer struct {
	lem *golem.Lemmatizer
}

func newDictLemmatizer() (*dictLemmatizer, error) {
	lem, err := golem.New(en.New())
	if err != nil {
		return nil, err
	}
	return &dictLemmatizer{lem: lem}, nil
}

// Lemma falls back to word when the dictionary form is not plain a-z, so
// the token invariants hold regardless of dictionary content.
func (d *dictLemmatizer) Lemma(word string) string {
	lemma := strings.ToLower(d.lem.Lemma(word))
	if lemma == "" {
		return word
	}
	for _, r := range lemma {
		if r < 'a' || r > 'z' {
			return word
		}
	}
	return lemma
}
