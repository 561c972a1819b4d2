package dispatch

import "procura/internal/core/numerator"

const (
	// NumeratorStrategy defines the numbering strategy for dispatch batches.
	// Internal logistics documents, gaps are acceptable.
	NumeratorStrategy = numerator.StrategyCached

	// NumberPrefix for generated batch numbers.
	NumberPrefix = "DSP"
)
