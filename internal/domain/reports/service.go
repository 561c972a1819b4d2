package reports

import (
	"context"
	"fmt"
	"time"

	"procura/internal/domain/reconcile"
)

// Repository defines report data access interface.
type Repository interface {
	GetFulfillmentReport(ctx context.Context, filter FulfillmentFilter) (*FulfillmentReport, error)
}

// Service provides report generation operations.
type Service struct {
	repo Repository
}

// NewService creates a new reports service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetFulfillment generates the per-line fulfillment report. Statuses are
// derived here with the same deriver used everywhere else; the repository
// returns raw quantities only.
func (s *Service) GetFulfillment(ctx context.Context, filter FulfillmentFilter) (*FulfillmentReport, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}

	report, err := s.repo.GetFulfillmentReport(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get fulfillment report: %w", err)
	}

	for i := range report.Rows {
		row := &report.Rows[i]
		row.Status = reconcile.DeriveStatus(row.PromisedQty, row.DispatchedQty, row.ReceivedQty)
	}

	// Status filtering happens after derivation since storage never sees
	// status values.
	if filter.Status != nil {
		filtered := report.Rows[:0]
		for _, row := range report.Rows {
			if row.Status == *filter.Status {
				filtered = append(filtered, row)
			}
		}
		report.Rows = filtered
	}

	report.GeneratedAt = time.Now().UTC()
	return report, nil
}
