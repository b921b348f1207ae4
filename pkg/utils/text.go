// Package utils holds the text-normalization and string-similarity
// primitives shared by entity resolution, fact dedup, and conflict
// detection. Every component that compares free text goes through the same
// normalized keys and the same similarity score so thresholds stay
// comparable across the engine.
package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"sync"
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// NormalizeText lowercases text and collapses whitespace so equal assertions
// map to the same comparable key.
func NormalizeText(text string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(strings.ToLower(text), " "))
}

// ContentDigest derives the dedup digest of a fact from its normalized text.
func ContentDigest(text string) string {
	sum := sha256.Sum256([]byte(NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}

var fuzzyRE = regexp.MustCompile(`[^a-z0-9' ]`)

// normalizeFuzzy produces a fuzzier form that keeps alphanumerics and
// apostrophes for n-gram shingles.
func normalizeFuzzy(text string) string {
	normalized := fuzzyRE.ReplaceAllString(NormalizeText(text), " ")
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(normalized, " "))
}

// shingleCache caches shingle sets per normalized string.
var shingleCache sync.Map

// Shingles returns the character-trigram set of the fuzzily normalized text.
func Shingles(text string) []string {
	normalized := normalizeFuzzy(text)
	if cached, ok := shingleCache.Load(normalized); ok {
		return cached.([]string)
	}

	cleaned := strings.ReplaceAll(normalized, " ", "")
	var result []string
	switch {
	case cleaned == "":
		result = []string{}
	case len(cleaned) < 3:
		result = []string{cleaned}
	default:
		result = make([]string, 0, len(cleaned)-2)
		for i := 0; i+3 <= len(cleaned); i++ {
			result = append(result, cleaned[i:i+3])
		}
	}

	shingleCache.Store(normalized, result)
	return result
}

// JaccardSimilarity returns the Jaccard similarity between two shingle sets.
func JaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	setA := make(map[string]bool, len(a))
	for _, s := range a {
		setA[s] = true
	}
	setB := make(map[string]bool, len(b))
	for _, s := range b {
		setB[s] = true
	}

	intersection := 0
	for s := range setA {
		if setB[s] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// levenshtein computes the edit distance between two strings.
func levenshtein(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}
	if s1 == s2 {
		return 0
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := 0; j <= len(s2); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(s2)]
}

// Similarity is the engine's single fuzzy-match primitive: a normalized
// edit-distance ratio in [0,1] between two strings, computed over their
// normalized forms. The resolver's fuzzy tier and conflict detection both
// consume this score, so their thresholds live on the same scale.
func Similarity(a, b string) float64 {
	na, nb := NormalizeText(a), NormalizeText(b)
	if na == nb {
		return 1.0
	}
	longest := len(na)
	if len(nb) > longest {
		longest = len(nb)
	}
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(na, nb))/float64(longest)
}
