// Package orders provides the Order document service.
package orders

import (
	"context"
	"fmt"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/core/numerator"
	"procura/internal/core/tx"
	"procura/internal/core/types"
	"procura/internal/domain"
	"procura/internal/domain/reconcile"
	"procura/pkg/logger"
)

// Service provides business operations for orders.
type Service struct {
	repo      Repository
	engine    *reconcile.Engine
	numerator numerator.Generator
	txManager tx.SerializableManager
	hooks     *domain.HookRegistry[*Order]
}

// NewService creates a new order service.
func NewService(
	repo Repository,
	engine *reconcile.Engine,
	num numerator.Generator,
	txManager tx.SerializableManager,
) *Service {
	return &Service{
		repo:      repo,
		engine:    engine,
		numerator: num,
		txManager: txManager,
		hooks:     domain.NewHookRegistry[*Order](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Order] {
	return s.hooks
}

// Ingest creates a new order with its lines and lots.
// Lines arriving without a delivery schedule get a single implicit lot.
func (s *Service) Ingest(ctx context.Context, ord *Order) error {
	if err := s.hooks.RunBeforeCreate(ctx, ord); err != nil {
		return err
	}

	ord.EnsureLots()

	if err := ord.Validate(ctx); err != nil {
		return err
	}

	if ord.Number == "" {
		cfg := numerator.DefaultConfig(NumberPrefix)
		number, err := s.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: NumeratorStrategy}, time.Now())
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		ord.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, ord); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := s.repo.SaveLines(ctx, ord.ID, ord.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.hooks.RunAfterCreate(ctx, ord); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "order ingested",
		"id", ord.ID,
		"number", ord.Number,
		"lines", len(ord.Lines))

	return nil
}

// Amend replaces the order header and table part, then re-derives the whole
// ledger so quantities already dispatched or received against surviving lines
// stay correct.
func (s *Service) Amend(ctx context.Context, ord *Order) error {
	if err := s.hooks.RunBeforeUpdate(ctx, ord); err != nil {
		return err
	}

	ord.EnsureLots()

	if err := ord.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunSerializable(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, ord); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if err := s.repo.SaveLines(ctx, ord.ID, ord.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return s.engine.SyncOrder(ctx, ord.ID)
	})
	if err != nil {
		return err
	}

	if err := s.hooks.RunAfterUpdate(ctx, ord); err != nil {
		logger.Warn(ctx, "after-update hook failed", "error", err)
	}

	return nil
}

// GetByID retrieves an order with lines, lots and derived statuses.
func (s *Service) GetByID(ctx context.Context, orderID id.ID) (*Order, error) {
	ord, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetLines(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	ord.Lines = lines
	ord.DeriveStatuses()

	return ord, nil
}

// GetByNumber retrieves an order by document number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Order, error) {
	ord, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetLines(ctx, ord.ID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	ord.Lines = lines
	ord.DeriveStatuses()

	return ord, nil
}

// SetLineOverride sets or clears the manual dispatched override on a line and
// recalculates it. Pass nil to clear.
func (s *Service) SetLineOverride(ctx context.Context, lineID id.ID, override *types.Quantity) error {
	if override != nil && override.IsNegative() {
		return apperror.NewValidation("override cannot be negative").
			WithDetail("order_line_id", lineID)
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.SetLineOverride(ctx, lineID, override); err != nil {
			return err
		}
		return s.engine.RecalculateLine(ctx, lineID, reconcile.Exclusion{})
	})
}

// SetLotOverride sets or clears the manual dispatched override on a lot and
// recalculates the owning line.
func (s *Service) SetLotOverride(ctx context.Context, lotID id.ID, override *types.Quantity) error {
	if override != nil && override.IsNegative() {
		return apperror.NewValidation("override cannot be negative").
			WithDetail("lot_id", lotID)
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		lineID, err := s.repo.SetLotOverride(ctx, lotID, override)
		if err != nil {
			return err
		}
		return s.engine.RecalculateLine(ctx, lineID, reconcile.Exclusion{})
	})
}

// Sync re-derives every line of the order from the current event set.
// Runs serializable so it cannot interleave with event handlers.
func (s *Service) Sync(ctx context.Context, orderID id.ID) error {
	return s.txManager.RunSerializable(ctx, func(ctx context.Context) error {
		return s.engine.SyncOrder(ctx, orderID)
	})
}

// Delete soft-deletes an order. Orders with dispatches recorded against them
// cannot be deleted.
func (s *Service) Delete(ctx context.Context, orderID id.ID) error {
	ord, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	if err := s.hooks.RunBeforeDelete(ctx, ord); err != nil {
		return err
	}

	attached, err := s.repo.HasDispatches(ctx, orderID)
	if err != nil {
		return fmt.Errorf("check dispatches: %w", err)
	}
	if attached {
		return apperror.NewConflict("order has dispatch batches recorded against it").
			WithDetail("order_id", orderID.String())
	}

	if err := s.repo.Delete(ctx, orderID); err != nil {
		return err
	}

	if err := s.hooks.RunAfterDelete(ctx, ord); err != nil {
		logger.Warn(ctx, "after-delete hook failed", "error", err)
	}

	return nil
}

// List retrieves orders with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error) {
	return s.repo.List(ctx, filter)
}
