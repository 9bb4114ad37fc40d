package search

import "strings"

// Stop words dropped from both queries and documents before lexical matching.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "or": true, "i": true, "me": true, "my": true,
	"we": true, "our": true, "need": true, "want": true, "looking": true,
}

// minPrefixLength is the shortest query term that may match a longer word by prefix.
const minPrefixLength = 3

// tokenizeAndFilter splits text into words, lowercases, trims punctuation, and removes stop words
func tokenizeAndFilter(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// uniqueTerms returns the distinct filtered tokens of text in first-seen order.
func uniqueTerms(text string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, t := range tokenizeAndFilter(text) {
		if !seen[t] {
			seen[t] = true
			terms = append(terms, t)
		}
	}
	return terms
}

// textMatch is the lexical score of one document against the query terms.
type textMatch struct {
	score   float64
	exact   []string
	partial []string
}

// scoreText gives each query term an equal share of 1: the full share when
// the document contains the term, half when a document word starts with it.
func scoreText(terms []string, document string) textMatch {
	var m textMatch
	if len(terms) == 0 {
		return m
	}

	docWords := tokenizeAndFilter(document)
	docSet := make(map[string]bool, len(docWords))
	for _, w := range docWords {
		docSet[w] = true
	}

	share := 1.0 / float64(len(terms))
	for _, term := range terms {
		if docSet[term] {
			m.score += share
			m.exact = append(m.exact, term)
			continue
		}
		if len(term) < minPrefixLength {
			continue
		}
		for _, w := range docWords {
			if strings.HasPrefix(w, term) {
				m.score += share / 2
				m.partial = append(m.partial, term)
				break
			}
		}
	}
	return m
}

// containsTerm reports whether document contains phrase as a case-insensitive substring.
func containsTerm(document, phrase string) bool {
	return strings.Contains(strings.ToLower(document), strings.ToLower(phrase))
}
