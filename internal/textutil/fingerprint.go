package textutil

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const minTokenRunes = 2

// Fingerprint is a weighted term vector.
type Fingerprint struct {
	terms map[string]float64
	norm  float64
}

// NewFingerprint counts the tokens of text. It returns nil when text has no
// usable tokens.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	return newFingerprint(counts)
}

func newFingerprint(terms map[string]float64) *Fingerprint {
	var sum float64
	for _, w := range terms {
		sum += w * w
	}
	if sum == 0 {
		return nil
	}
	return &Fingerprint{terms: terms, norm: math.Sqrt(sum)}
}

// Tokenize lowercases text and splits it into letter/digit runs.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if utf8.RuneCountInString(field) < minTokenRunes {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}

// Terms returns the number of distinct terms.
func (f *Fingerprint) Terms() int {
	if f == nil {
		return 0
	}
	return len(f.terms)
}

func (f *Fingerprint) weighted(idf map[string]float64) *Fingerprint {
	if f == nil || len(idf) == 0 {
		return f
	}
	terms := make(map[string]float64, len(f.terms))
	for term, count := range f.terms {
		w, ok := idf[term]
		if !ok {
			w = 1
		}
		terms[term] = count * w
	}
	return newFingerprint(terms)
}

// Cosine returns the cosine similarity of a and b, 0 when either is empty.
func Cosine(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	small, large := a, b
	if len(small.terms) > len(large.terms) {
		small, large = large, small
	}
	var dot float64
	for term, w := range small.terms {
		dot += w * large.terms[term]
	}
	return dot / (a.norm * b.norm)
}

// Match is one ranked document.
type Match struct {
	Position int
	Score    float64
}

// Index ranks a fixed set of documents against queries.
type Index struct {
	docs []*Fingerprint
	idf  map[string]float64
}

// NewIndex fingerprints docs and computes smoothed IDF weights:
// 1 + ln((N+1)/(1+df)).
func NewIndex(docs []string) *Index {
	raw := make([]*Fingerprint, len(docs))
	df := make(map[string]int)
	for i, doc := range docs {
		raw[i] = NewFingerprint(doc)
		if raw[i] == nil {
			continue
		}
		for term := range raw[i].terms {
			df[term]++
		}
	}
	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for term, count := range df {
		idf[term] = 1 + math.Log((n+1)/(1+float64(count)))
	}
	ix := &Index{docs: make([]*Fingerprint, len(raw)), idf: idf}
	for i, fp := range raw {
		ix.docs[i] = fp.weighted(idf)
	}
	return ix
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int { return len(ix.docs) }

// Search returns documents scoring above zero, best first. Ties keep index
// order.
func (ix *Index) Search(query string) []Match {
	q := NewFingerprint(query).weighted(ix.idf)
	if q == nil {
		return nil
	}
	var matches []Match
	for i, doc := range ix.docs {
		if score := Cosine(q, doc); score > 0 {
			matches = append(matches, Match{Position: i, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}
