// Package receipt provides the Receipt repository contract.
package receipt

import (
	"context"
	"time"

	"procura/internal/core/id"
	"procura/internal/domain"
)

// Repository defines storage operations for receipts.
//
// Lines (receipt records) are inserted through the reconciliation engine; the
// repository reads them back and hard-deletes them with the document.
type Repository interface {
	// Header operations
	Create(ctx context.Context, rcpt *Receipt) error
	GetByID(ctx context.Context, receiptID id.ID) (*Receipt, error)
	GetByNumber(ctx context.Context, number string) (*Receipt, error)

	// GetLines reads the receipt's records.
	GetLines(ctx context.Context, receiptID id.ID) ([]Line, error)

	// DeleteWithRecords hard-deletes the receipt header and its records.
	// Callers must run the engine's receipt-deleted handler first.
	DeleteWithRecords(ctx context.Context, receiptID id.ID) error

	// List operations
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Receipt], error)
}

// ListFilter for filtering receipts.
type ListFilter struct {
	domain.ListFilter

	OrderID         *id.ID
	DispatchBatchID *id.ID
	DateFrom        *time.Time
	DateTo          *time.Time
}
