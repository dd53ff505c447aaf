package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeuristic_EmptyString(t *testing.T) {
	assert.Equal(t, 0, Estimate(""))
}

func TestHeuristic_SingleChar(t *testing.T) {
	// (0.25 + 1.3) / 2 = 0.775 → ceil = 1
	assert.Equal(t, 1, Estimate("x"))
}

func TestHeuristic_ShortSentence(t *testing.T) {
	// len=11, words=2 → (11/4 + 2*1.3)/2 = 2.675 → ceil = 3
	assert.Equal(t, 3, Estimate("Hello world"))
}

func TestHeuristic_WhitespaceOnlyStillCostsOne(t *testing.T) {
	assert.Equal(t, 1, Estimate("    "))
}

func TestHeuristic_CodeScalesUp(t *testing.T) {
	// len=23, words=7 → (5.75 + 9.1)/2 = 7.425
	// 7 of 23 runes are symbols (>10%) → 7.425*1.15 = 8.53875 → ceil = 9
	assert.Equal(t, 9, Estimate("if (x == 1) { return; }"))
}

func TestHeuristic_NewlinesAddHalfTokenEach(t *testing.T) {
	// len=5, words=3 → (1.25 + 3.9)/2 = 2.575, +0.5*2 = 3.575 → ceil = 4
	assert.Equal(t, 4, Estimate("a\nb\nc"))
}

func TestHeuristic_ScalesWithLength(t *testing.T) {
	short := Estimate(strings.Repeat("word ", 10))
	long := Estimate(strings.Repeat("word ", 100))
	assert.Greater(t, long, short*5)
}

func TestHeuristic_ProseNotScaledAsCode(t *testing.T) {
	// One period in a full sentence stays under the 10% symbol threshold.
	prose := "The quick brown fox jumps over the lazy dog."
	// len=44, words=9 → (11 + 11.7)/2 = 11.35 → ceil = 12
	assert.Equal(t, 12, Estimate(prose))
}
