package derive

// RiskBand is one of the four ordered risk classifications.
type RiskBand string

const (
	RiskHigh RiskBand = "High Risk"
	RiskMid  RiskBand = "Risky"
	RiskLow  RiskBand = "Low Risk"
	RiskSafe RiskBand = "Safe"
)

// riskThresholds is the fixed ordered threshold table. Boundaries are
// inclusive on the lower band: exactly 200m is still High Risk.
var riskThresholds = []struct {
	maxMeters float64
	band      RiskBand
}{
	{200, RiskHigh},
	{500, RiskMid},
	{1000, RiskLow},
}

// ClassifyRisk maps a distance in meters onto a risk band. The caller must
// reject the Undefined sentinel first.
func ClassifyRisk(distanceMeters float64) RiskBand {
	for _, t := range riskThresholds {
		if distanceMeters <= t.maxMeters {
			return t.band
		}
	}
	return RiskSafe
}

// Severity returns the ordering of a band, 0 being most severe. Useful for
// comparing classifications.
func (b RiskBand) Severity() int {
	switch b {
	case RiskHigh:
		return 0
	case RiskMid:
		return 1
	case RiskLow:
		return 2
	default:
		return 3
	}
}
