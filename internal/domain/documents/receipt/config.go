package receipt

import "procura/internal/core/numerator"

const (
	// NumeratorStrategy defines the numbering strategy for receipts.
	// Receipts feed accounting, so numbering is strict and gap-free.
	NumeratorStrategy = numerator.StrategyStrict

	// NumberPrefix for generated receipt numbers.
	NumberPrefix = "RCV"
)
