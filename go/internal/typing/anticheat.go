package typing

import "math"

const (
	// Keystroke rhythm thresholds. Human typing has jitter well above
	// 15ms between keys; a near constant sub-100ms cadence is a script.
	botIntervalStddevMs = 15.0
	botIntervalMeanMs   = 100.0

	// Nobody sustains more than this over a full test.
	superhumanWPM = 300

	// Growing the input by more than this many runes in a single
	// keystroke means the text was pasted.
	pasteJumpRunes = 5
)

// CheatReason explains why a result was discarded.
type CheatReason string

const (
	CheatNone       CheatReason = ""
	CheatBotRhythm  CheatReason = "bot_rhythm"
	CheatSuperhuman CheatReason = "superhuman_wpm"
)

// meanStddev returns the mean and population standard deviation of the
// keystroke intervals, in milliseconds.
func meanStddev(intervals []float64) (mean, stddev float64) {
	if len(intervals) == 0 {
		return 0, 0
	}
	for _, v := range intervals {
		mean += v
	}
	mean /= float64(len(intervals))

	var sq float64
	for _, v := range intervals {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(intervals)))
}

// detectCheat inspects the finished test's keystroke intervals and speed.
func detectCheat(intervals []float64, wpm int) CheatReason {
	if wpm > superhumanWPM {
		return CheatSuperhuman
	}
	if len(intervals) < 10 {
		// Too few samples to judge rhythm.
		return CheatNone
	}
	mean, stddev := meanStddev(intervals)
	if stddev < botIntervalStddevMs && mean < botIntervalMeanMs {
		return CheatBotRhythm
	}
	return CheatNone
}
