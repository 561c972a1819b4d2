// Package dispatch provides the DispatchBatch repository contract.
package dispatch

import (
	"context"
	"time"

	"procura/internal/core/id"
	"procura/internal/domain"
)

// Repository defines storage operations for dispatch batches.
//
// Lines (dispatch records) are inserted one by one through the reconciliation
// engine's admission control, not through this repository; the repository only
// reads them back and hard-deletes them with the batch.
type Repository interface {
	// Header operations
	Create(ctx context.Context, batch *DispatchBatch) error
	GetByID(ctx context.Context, batchID id.ID) (*DispatchBatch, error)
	GetByNumber(ctx context.Context, number string) (*DispatchBatch, error)
	Update(ctx context.Context, batch *DispatchBatch) error

	// GetLines reads the batch's dispatch records with per-batch receipt
	// quantities maintained by the reconciliation engine.
	GetLines(ctx context.Context, batchID id.ID) ([]Line, error)

	// DeleteWithRecords hard-deletes the batch header and its records.
	// Callers must run the engine's dispatch-deleted handler first.
	DeleteWithRecords(ctx context.Context, batchID id.ID) error

	// List operations
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*DispatchBatch], error)
}

// ListFilter for filtering dispatch batches.
type ListFilter struct {
	domain.ListFilter

	OrderID  *id.ID
	DateFrom *time.Time
	DateTo   *time.Time
}
