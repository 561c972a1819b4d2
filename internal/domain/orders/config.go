package orders

import "procura/internal/core/numerator"

const (
	// NumeratorStrategy defines the numbering strategy for orders.
	// Orders are internal documents, gaps are acceptable.
	NumeratorStrategy = numerator.StrategyCached

	// NumberPrefix for generated order numbers.
	NumberPrefix = "ORD"
)
