// Package fuzzy provides normalized text-similarity measures on a 0-100 scale.
//
// The default measure, Ratio, is the edit-distance ratio used by the confidence scorer
// when a candidate's relevance score alone is inconclusive: 100 * 2*LCS / (len(a)+len(b)),
// where LCS is the length of the longest common subsequence. This equals
// 100 * (1 - d/(len(a)+len(b))) for the insertion/deletion edit distance d.
// Results are rounded to the nearest integer so thresholds compare against whole numbers.
package fuzzy

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/hbollon/go-edlib"

	"github.com/gcbaptista/go-titlematch/internal/tokenizer"
)

// Supported algorithm names.
const (
	AlgorithmRatio          = "ratio"
	AlgorithmTokenSortRatio = "token_sort_ratio"
	AlgorithmLevenshtein    = "levenshtein"
	AlgorithmJaroWinkler    = "jaro_winkler"
	AlgorithmSorensenDice   = "sorensen_dice"
)

// Func computes the similarity of two strings on a 0-100 scale.
type Func func(a, b string) float64

var algorithms = map[string]Func{
	AlgorithmRatio:          Ratio,
	AlgorithmTokenSortRatio: TokenSortRatio,
	AlgorithmLevenshtein:    LevenshteinRatio,
	AlgorithmJaroWinkler:    JaroWinkler,
	AlgorithmSorensenDice:   SorensenDice,
}

// Algorithms returns the names of the supported algorithms, sorted.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSupported reports whether name is a known algorithm.
func IsSupported(name string) bool {
	_, ok := algorithms[name]
	return ok
}

// Lookup returns the similarity function registered under name.
// An empty name selects Ratio.
func Lookup(name string) (Func, error) {
	if name == "" {
		return Ratio, nil
	}
	fn, ok := algorithms[name]
	if !ok {
		return nil, fmt.Errorf("unknown fuzzy algorithm '%s' (supported: %s)", name, strings.Join(Algorithms(), ", "))
	}
	return fn, nil
}

// Ratio returns the longest-common-subsequence similarity of a and b.
// It is case sensitive and returns 0 when either string is empty.
func Ratio(a, b string) float64 {
	lenSum := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if a == "" || b == "" {
		return 0
	}
	lcs := edlib.LCS(a, b)
	return round(200 * float64(lcs) / float64(lenSum))
}

// TokenSortRatio returns Ratio after lowercasing, stripping punctuation and sorting the words
// of both strings, so reordered titles ("Metrics, The Eigenfactor") still compare as equal.
func TokenSortRatio(a, b string) float64 {
	return Ratio(tokenizer.SortedJoin(a), tokenizer.SortedJoin(b))
}

// LevenshteinRatio returns 100 * (1 - d/max(len(a), len(b))) for the rune-level Levenshtein distance d.
func LevenshteinRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	distance := edlib.LevenshteinDistance(a, b)
	return round(100 * (1 - float64(distance)/float64(maxLen)))
}

// JaroWinkler returns the case-insensitive Jaro-Winkler similarity scaled to 0-100.
func JaroWinkler(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return round(100 * strutil.Similarity(a, b, metrics.NewJaroWinkler()))
}

// SorensenDice returns the case-insensitive bigram Sorensen-Dice coefficient scaled to 0-100.
func SorensenDice(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return round(100 * strutil.Similarity(a, b, metrics.NewSorensenDice()))
}

func round(v float64) float64 {
	return math.Round(v)
}
