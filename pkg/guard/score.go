package guard

import (
	"math"

	"github.com/fieldsafe/sentinel/pkg/contracts"
)

// Score computes the overall inspection score: the percentage of pass
// results among scorable (pass/fail) responses, rounded to two decimals.
// Returns nil when no response is scorable — n/a and unset results never
// count against the score.
func Score(responses []contracts.Response) *float64 {
	var scorable, passed int
	for i := range responses {
		if !responses[i].Result.Scorable() {
			continue
		}
		scorable++
		if responses[i].Result == contracts.ResultPass {
			passed++
		}
	}
	if scorable == 0 {
		return nil
	}
	score := math.Round(float64(passed)/float64(scorable)*100*100) / 100
	return &score
}
