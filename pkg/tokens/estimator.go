package tokens

import (
	"math"
	"strings"
	"unicode"
)

// Estimator approximates the token cost of a piece of text.
// Counts are heuristic, not exact tokenizer output — the budget engine
// keeps a safety reserve to absorb the inaccuracy.
type Estimator interface {
	Estimate(text string) int
}

// Heuristic is the default estimator. It blends a character-based estimate
// (chars/4) with a word-based one (words*1.3), bumps the result for
// symbol-heavy text such as source code, and charges extra per newline.
type Heuristic struct{}

// NewHeuristic creates the default heuristic estimator
func NewHeuristic() Heuristic {
	return Heuristic{}
}

// Estimate returns an approximate token count for the text.
// Empty input costs nothing; any non-empty input costs at least one token.
func (Heuristic) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}

	charEstimate := float64(len(text)) / 4
	wordEstimate := float64(len(strings.Fields(text))) * 1.3
	estimate := (charEstimate + wordEstimate) / 2

	if symbolRatio(text) > 0.10 {
		estimate *= 1.15 // symbol-dense text tokenizes worse than prose
	}

	estimate += 0.5 * float64(strings.Count(text, "\n"))

	return int(math.Max(1, math.Ceil(estimate)))
}

// symbolRatio returns the fraction of runes that are neither letters,
// digits, nor whitespace. Code and markup score high here.
func symbolRatio(text string) float64 {
	total := 0
	symbols := 0
	for _, r := range text {
		total++
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.IsSpace(r) {
			symbols++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(symbols) / float64(total)
}

// Estimate approximates the token cost of text using the default heuristic.
func Estimate(text string) int {
	return Heuristic{}.Estimate(text)
}
