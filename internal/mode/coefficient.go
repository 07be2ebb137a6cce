package mode

// CoefficientParams tune the exploration coefficient update.
type CoefficientParams struct {
	Alpha        float64 `yaml:"alpha"`         // regret gap gain, Default: 0.5
	Beta         float64 `yaml:"beta"`          // drawdown penalty, Default: 0.3
	TargetRegret float64 `yaml:"target_regret"` // Default: 0.1
	Min          float64 `yaml:"min"`           // Default: 0.05
	Max          float64 `yaml:"max"`           // Default: 0.5
}

// DefaultCoefficientParams returns the documented update constants.
func DefaultCoefficientParams() CoefficientParams {
	return CoefficientParams{Alpha: 0.5, Beta: 0.3, TargetRegret: 0.1, Min: 0.05, Max: 0.5}
}

// NextExplorationCoefficient computes the next coefficient from the same
// input snapshot the mode decision reads. Pure: no state, no clock.
//
//	e(t+1) = clamp(e(t) + alpha*(targetRegret - observedRegret) - beta*drawdown, min, max)
func NextExplorationCoefficient(current, observedRegret, drawdown float64, p CoefficientParams) float64 {
	next := current + p.Alpha*(p.TargetRegret-observedRegret) - p.Beta*drawdown
	if next < p.Min {
		return p.Min
	}
	if next > p.Max {
		return p.Max
	}
	return next
}
