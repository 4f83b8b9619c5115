package battle

import (
	"math"
	"strings"
	"time"
)

// Pure progress and scoring math, shared by the battle coordinator and the
// solo test. All lengths are in runes so multi-byte characters count once.

// Progress is the percentage of the passage covered by the input length,
// capped at 100.
func Progress(input, passage string) int {
	passageLen := len([]rune(passage))
	if passageLen == 0 {
		return 0
	}
	pct := int(math.Round(float64(len([]rune(input))) / float64(passageLen) * 100))
	if pct > 100 {
		pct = 100
	}
	return pct
}

// WordCount counts whitespace-separated words in the input.
func WordCount(input string) int {
	return len(strings.Fields(input))
}

// WPM is the instantaneous words-per-minute estimate for input typed over
// elapsed. Zero when elapsed is not positive.
func WPM(input string, elapsed time.Duration) int {
	if elapsed <= 0 {
		return 0
	}
	wpm := int(math.Round(float64(WordCount(input)) / elapsed.Minutes()))
	if wpm < 0 {
		return 0
	}
	return wpm
}

// Accuracy is the percentage of input characters that match the passage at
// the same position. Empty input is 100.
func Accuracy(input, passage string) int {
	in := []rune(input)
	if len(in) == 0 {
		return 100
	}
	target := []rune(passage)
	correct := 0
	for i, r := range in {
		if i < len(target) && target[i] == r {
			correct++
		}
	}
	return int(math.Round(float64(correct) / float64(len(in)) * 100))
}

// Finished reports whether the input exactly equals the passage.
func Finished(input, passage string) bool {
	return input == passage
}
