package repository

import (
	"sort"
	"strings"
	"unicode"

	"triage-agent/internal/domain"
)

// indexedDoc is a knowledge document with its term frequencies precomputed.
type indexedDoc struct {
	content string
	freq    map[string]int
}

func indexDocuments(docs []domain.KnowledgeDocument) []indexedDoc {
	out := make([]indexedDoc, 0, len(docs))
	for _, d := range docs {
		content := strings.TrimSpace(d.Content)
		if content == "" {
			continue
		}
		freq := make(map[string]int)
		for _, tok := range tokenize(content) {
			freq[tok]++
		}
		out = append(out, indexedDoc{content: content, freq: freq})
	}
	return out
}

// tokenize lowercases s and splits it on anything that is not a letter or
// digit, so "skin_rash" yields "skin" and "rash".
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// queryTerms returns the distinct tokens of q longer than two characters.
func queryTerms(q string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, tok := range tokenize(q) {
		if len(tok) < 3 {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}
	return terms
}

// rankDocuments orders docs by how many distinct query terms they contain,
// then by total term hits, and returns at most k contents. Documents sharing
// no term with the query are dropped.
func rankDocuments(docs []indexedDoc, query string, k int) []string {
	terms := queryTerms(query)
	if len(terms) == 0 || k <= 0 {
		return nil
	}

	type scored struct {
		idx     int
		matched int
		hits    int
	}
	var candidates []scored
	for i, d := range docs {
		s := scored{idx: i}
		for _, t := range terms {
			if n := d.freq[t]; n > 0 {
				s.matched++
				s.hits += n
			}
		}
		if s.matched > 0 {
			candidates = append(candidates, s)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].matched != candidates[j].matched {
			return candidates[i].matched > candidates[j].matched
		}
		return candidates[i].hits > candidates[j].hits
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, docs[c.idx].content)
	}
	return out
}
