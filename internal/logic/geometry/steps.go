package geometry

// StepsCalculator converts working-area distances to motor step counts.
// The two axes carry independent factors because the belts are not
// mechanically identical; these factors are the whole calibration between
// pixels and the machine.
type StepsCalculator struct {
	perUnitX float64
	perUnitY float64
}

// NewStepsCalculator creates a step calculator from per-axis factors.
func NewStepsCalculator(perUnitX, perUnitY float64) *StepsCalculator {
	return &StepsCalculator{perUnitX: perUnitX, perUnitY: perUnitY}
}

// StepsX converts a left/right distance to steps, truncating.
func (s *StepsCalculator) StepsX(distance float64) int {
	return int(s.perUnitX * distance)
}

// StepsY converts a forward/backward distance to steps, truncating.
func (s *StepsCalculator) StepsY(distance float64) int {
	return int(s.perUnitY * distance)
}
