package battle

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgress(t *testing.T) {
	passage := "olma nok uzum"

	assert.Equal(t, 0, Progress("", passage))
	assert.Equal(t, 31, Progress("olma", passage)) // 4/13
	assert.Equal(t, 100, Progress(passage, passage))
	assert.Equal(t, 100, Progress(passage+" extra", passage), "capped at 100")
	assert.Equal(t, 0, Progress("anything", ""), "empty passage")
}

func TestProgress_MonotonicWithoutDeletion(t *testing.T) {
	passage := GenerateWords(10)
	prev := 0
	for i := 1; i <= len(passage); i++ {
		p := Progress(passage[:i], passage)
		assert.GreaterOrEqual(t, p, prev)
		prev = p
	}
	assert.Equal(t, 100, prev)
}

func TestAccuracy(t *testing.T) {
	passage := "olma nok"

	assert.Equal(t, 100, Accuracy("", passage), "empty input is 100")
	assert.Equal(t, 100, Accuracy("olma", passage))
	assert.Equal(t, 50, Accuracy("olXX", passage))
	assert.Equal(t, 0, Accuracy("XXXX", passage))

	// Inputs longer than the passage count the overflow as wrong.
	assert.Equal(t, 80, Accuracy("olma nok99", passage))
}

func TestAccuracy_AlwaysInRange(t *testing.T) {
	passage := "olma nok uzum"
	inputs := []string{"", "o", "olma", "zzzz", passage, passage + passage, "o'zbekcha so'z"}
	for _, in := range inputs {
		acc := Accuracy(in, passage)
		assert.GreaterOrEqual(t, acc, 0, "input %q", in)
		assert.LessOrEqual(t, acc, 100, "input %q", in)
	}
}

func TestWPM(t *testing.T) {
	input := strings.Repeat("so'z ", 30) // 30 words

	assert.Equal(t, 60, WPM(input, 30*time.Second))
	assert.Equal(t, 30, WPM(input, time.Minute))
	assert.Equal(t, 0, WPM(input, 0), "zero elapsed clamps to 0")
	assert.Equal(t, 0, WPM(input, -time.Second), "negative elapsed clamps to 0")
	assert.Equal(t, 0, WPM("", time.Minute))
}

func TestFinished(t *testing.T) {
	passage := "olma nok"
	assert.False(t, Finished("olma no", passage))
	assert.False(t, Finished("olma nok ", passage))
	assert.True(t, Finished(passage, passage))
}

func TestGeneratePassage(t *testing.T) {
	for _, tc := range []struct {
		difficulty string
		words      int
	}{
		{"easy", 20},
		{"normal", 35},
		{"hard", 50},
		{"unknown", 35},
	} {
		passage := GeneratePassage(tc.difficulty)
		assert.Equal(t, tc.words, len(strings.Fields(passage)), "difficulty %s", tc.difficulty)
	}
}

func TestNewRoomCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := NewRoomCode()
		assert.Len(t, code, 6)
		for _, r := range code {
			assert.Contains(t, codeAlphabet, string(r))
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 90, "codes should be effectively unique")
}
