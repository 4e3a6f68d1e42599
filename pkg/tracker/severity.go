package tracker

import "github.com/fieldsafe/sentinel/pkg/contracts"

var severityScore = map[contracts.Severity]float64{
	contracts.SeverityLow:    1,
	contracts.SeverityMedium: 2,
	contracts.SeverityHigh:   3,
}

// DeriveSeverity maps the two risk axes to an overall severity: the mean
// of the valid axis scores, banded at 1.5 and 2.5. With neither axis valid
// the result is medium, the conservative middle.
func DeriveSeverity(occurrence, injury contracts.Severity) contracts.Severity {
	var sum float64
	var n int
	for _, axis := range []contracts.Severity{occurrence, injury} {
		if score, ok := severityScore[axis]; ok {
			sum += score
			n++
		}
	}
	if n == 0 {
		return contracts.SeverityMedium
	}
	mean := sum / float64(n)
	switch {
	case mean >= 2.5:
		return contracts.SeverityHigh
	case mean >= 1.5:
		return contracts.SeverityMedium
	default:
		return contracts.SeverityLow
	}
}
