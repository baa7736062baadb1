// Package index implements the in-memory inverted keyword index: a mapping
// from term to the set of documents containing it, with per-document term
// frequencies. The index keeps the autocomplete trie in lock-step with its
// vocabulary: a term is in the trie iff at least one live document contains
// it.
package index

import (
	"fmt"
	"strings"

	"github.com/organizerlabs/smart-search-organizer/internal/engine/trie"
)

// Mode selects how multi-term queries combine posting sets.
type Mode int

const (
	// ModeAnd intersects the posting sets of all query terms.
	ModeAnd Mode = iota
	// ModeOr unions the posting sets of all query terms.
	ModeOr
)

func (m Mode) String() string {
	if m == ModeOr {
		return "OR"
	}
	return "AND"
}

// ParseMode converts a config or query-string value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AND":
		return ModeAnd, nil
	case "OR":
		return ModeOr, nil
	default:
		return ModeAnd, fmt.Errorf("unknown search mode %q", s)
	}
}

// Index maps each term to its posting set with term frequencies.
// It is not goroutine-safe; the owning engine serialises access.
type Index struct {
	postings map[string]map[string]int
	trie     *trie.Trie
}

// New creates an empty Index that mirrors its vocabulary into t.
func New(t *trie.Trie) *Index {
	return &Index{
		postings: make(map[string]map[string]int),
		trie:     t,
	}
}

// Add registers docID under every term in freqs and inserts each distinct
// term into the trie. O(#distinct terms).
func (ix *Index) Add(docID string, freqs map[string]int) {
	for term, freq := range freqs {
		set, ok := ix.postings[term]
		if !ok {
			set = make(map[string]int)
			ix.postings[term] = set
		}
		set[docID] = freq
		ix.trie.Insert(term)
	}
}

// Remove is the inverse of Add: it drops docID from every term's posting
// set, deletes terms whose posting set becomes empty, and releases one trie
// reference per distinct term. O(#distinct terms).
func (ix *Index) Remove(docID string, freqs map[string]int) {
	for term := range freqs {
		set, ok := ix.postings[term]
		if !ok {
			continue
		}
		if _, ok := set[docID]; !ok {
			continue
		}
		delete(set, docID)
		if len(set) == 0 {
			delete(ix.postings, term)
		}
		ix.trie.Remove(term)
	}
}

// Candidates returns the set of document IDs matching tokens under the given
// mode. ModeAnd short-circuits to an empty set as soon as any token has no
// postings and intersects starting from the smallest posting set; ModeOr
// unions all posting sets. An empty token list yields an empty set.
func (ix *Index) Candidates(tokens []string, mode Mode) map[string]struct{} {
	if mode == ModeOr {
		return ix.union(tokens)
	}
	return ix.intersect(tokens)
}

// TermFrequency returns the stored frequency of term in docID, or 0.
func (ix *Index) TermFrequency(term, docID string) int {
	return ix.postings[term][docID]
}

// PostingCount returns the number of documents containing term.
func (ix *Index) PostingCount(term string) int {
	return len(ix.postings[term])
}

// Terms returns the number of distinct terms in the index.
func (ix *Index) Terms() int {
	return len(ix.postings)
}

func (ix *Index) intersect(tokens []string) map[string]struct{} {
	result := make(map[string]struct{})
	if len(tokens) == 0 {
		return result
	}
	smallest := -1
	for _, token := range tokens {
		set, ok := ix.postings[token]
		if !ok {
			return result
		}
		if smallest < 0 || len(set) < smallest {
			smallest = len(set)
		}
	}
	var seed string
	for _, token := range tokens {
		if len(ix.postings[token]) == smallest {
			seed = token
			break
		}
	}
	for docID := range ix.postings[seed] {
		result[docID] = struct{}{}
	}
	for _, token := range tokens {
		if token == seed {
			continue
		}
		set := ix.postings[token]
		for docID := range result {
			if _, ok := set[docID]; !ok {
				delete(result, docID)
			}
		}
	}
	return result
}

func (ix *Index) union(tokens []string) map[string]struct{} {
	result := make(map[string]struct{})
	for _, token := range tokens {
		for docID := range ix.postings[token] {
			result[docID] = struct{}{}
		}
	}
	return result
}
