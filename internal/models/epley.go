package models

import "math"

// Epley1RM estimates a one-rep max in grams from a submaximal set using
// the Epley relation weight × (1 + reps/30). The estimate is only
// meaningful for 1–12 reps at a positive weight; outside that range the
// second return is false rather than producing a misleading number.
// A single rep is the lift itself, so reps == 1 returns the weight.
func Epley1RM(weightG int64, reps int) (int64, bool) {
	if weightG <= 0 || reps < 1 || reps > 12 {
		return 0, false
	}
	if reps == 1 {
		return weightG, true
	}
	est := float64(weightG) * (1 + float64(reps)/30)
	return int64(math.Round(est)), true
}
