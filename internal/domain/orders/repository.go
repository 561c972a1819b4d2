// Package orders provides the Order repository contract.
package orders

import (
	"context"
	"time"

	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain"
)

// Repository defines storage operations for orders.
type Repository interface {
	// CRUD operations
	Create(ctx context.Context, ord *Order) error
	GetByID(ctx context.Context, orderID id.ID) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	Update(ctx context.Context, ord *Order) error
	Delete(ctx context.Context, orderID id.ID) error

	// Line and lot operations
	GetLines(ctx context.Context, orderID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, orderID id.ID, lines []Line) error
	SetLineOverride(ctx context.Context, lineID id.ID, override *types.Quantity) error
	// SetLotOverride updates the lot override and returns the owning line id.
	SetLotOverride(ctx context.Context, lotID id.ID, override *types.Quantity) (id.ID, error)

	// HasDispatches reports whether any dispatch record references the order.
	HasDispatches(ctx context.Context, orderID id.ID) (bool, error)

	// List operations
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error)

	// Locking
	GetForUpdate(ctx context.Context, orderID id.ID) (*Order, error)
}

// ListFilter for filtering orders.
type ListFilter struct {
	domain.ListFilter

	// Order-specific filters
	SupplierID *id.ID
	DateFrom   *time.Time
	DateTo     *time.Time
}
