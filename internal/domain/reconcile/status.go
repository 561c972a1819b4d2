package reconcile

import (
	"procura/internal/core/types"
)

// Status is a fulfillment status label.
type Status string

const (
	// StatusPending - nothing meaningfully dispatched yet, or partial dispatch
	// not yet received in full.
	StatusPending Status = "pending"
	// StatusDelivered - fully dispatched, not yet fully received.
	StatusDelivered Status = "delivered"
	// StatusClosed - fully received.
	StatusClosed Status = "closed"
)

// DeriveStatus maps a (promised, dispatched, received) triple to a status label.
//
// This is the single implementation used everywhere a status is shown: per
// order line, aggregated per order, and on dispatch and receipt documents.
// Line-level and order-level aggregates are computed from different inputs
// but must agree on what each label means.
func DeriveStatus(promised, dispatched, received types.Quantity) Status {
	switch {
	case received.GteWithin(promised):
		return StatusClosed
	case dispatched < types.Epsilon:
		return StatusPending
	case dispatched.GteWithin(promised):
		return StatusDelivered
	default:
		return StatusPending
	}
}
