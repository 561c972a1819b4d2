// Package dispatch provides the DispatchBatch document service.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"procura/internal/core/id"
	"procura/internal/core/numerator"
	"procura/internal/core/tx"
	"procura/internal/domain"
	"procura/internal/domain/reconcile"
	"procura/pkg/logger"
)

// Service provides business operations for dispatch batches.
type Service struct {
	repo      Repository
	engine    *reconcile.Engine
	numerator numerator.Generator
	txManager tx.Manager
	hooks     *domain.HookRegistry[*DispatchBatch]
}

// NewService creates a new dispatch batch service.
func NewService(
	repo Repository,
	engine *reconcile.Engine,
	num numerator.Generator,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:      repo,
		engine:    engine,
		numerator: num,
		txManager: txManager,
		hooks:     domain.NewHookRegistry[*DispatchBatch](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*DispatchBatch] {
	return s.hooks
}

// Create creates a dispatch batch. Every line passes admission control; one
// over-capacity line aborts the whole batch. On success the reconciliation
// engine re-derives every touched order line in the same transaction.
func (s *Service) Create(ctx context.Context, batch *DispatchBatch) error {
	if err := s.hooks.RunBeforeCreate(ctx, batch); err != nil {
		return err
	}

	if err := batch.Validate(ctx); err != nil {
		return err
	}

	if batch.Number == "" {
		cfg := numerator.DefaultConfig(NumberPrefix)
		number, err := s.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: NumeratorStrategy}, time.Now())
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		batch.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, batch); err != nil {
			return fmt.Errorf("create batch: %w", err)
		}

		for i := range batch.Lines {
			line := &batch.Lines[i]
			if id.IsNil(line.RecordID) {
				line.RecordID = id.New()
			}
			err := s.engine.AdmitDispatch(ctx, reconcile.DispatchInsert{
				RecordID:    line.RecordID,
				BatchID:     batch.ID,
				OrderLineID: line.OrderLineID,
				LotID:       line.LotID,
				Quantity:    line.Quantity,
			})
			if err != nil {
				return err
			}
		}

		return s.engine.OnDispatchCreated(ctx, batch.OrderLineIDs(), batch.ID)
	})
	if err != nil {
		return err
	}

	if err := s.hooks.RunAfterCreate(ctx, batch); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "dispatch batch created",
		"id", batch.ID,
		"number", batch.Number,
		"order_id", batch.OrderID,
		"lines", len(batch.Lines))

	return nil
}

// GetByID retrieves a dispatch batch with its records.
func (s *Service) GetByID(ctx context.Context, batchID id.ID) (*DispatchBatch, error) {
	batch, err := s.repo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetLines(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	batch.Lines = lines

	return batch, nil
}

// Delete removes a dispatch batch and its records. The ledger is re-derived
// with the batch excluded before the rows go away; a batch with receipts
// recorded against it is refused.
func (s *Service) Delete(ctx context.Context, batchID id.ID) error {
	batch, err := s.repo.GetByID(ctx, batchID)
	if err != nil {
		return err
	}

	if err := s.hooks.RunBeforeDelete(ctx, batch); err != nil {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.engine.OnDispatchDeleted(ctx, batchID); err != nil {
			return err
		}
		return s.repo.DeleteWithRecords(ctx, batchID)
	})
	if err != nil {
		return err
	}

	if err := s.hooks.RunAfterDelete(ctx, batch); err != nil {
		logger.Warn(ctx, "after-delete hook failed", "error", err)
	}

	logger.Info(ctx, "dispatch batch deleted",
		"id", batchID,
		"number", batch.Number)

	return nil
}

// Replace atomically swaps a batch's records for a new set: the old batch is
// reconciled out and deleted, the replacement admitted and reconciled in, all
// in one transaction.
func (s *Service) Replace(ctx context.Context, batchID id.ID, replacement *DispatchBatch) error {
	if err := s.hooks.RunBeforeUpdate(ctx, replacement); err != nil {
		return err
	}

	if err := replacement.Validate(ctx); err != nil {
		return err
	}

	old, err := s.repo.GetByID(ctx, batchID)
	if err != nil {
		return err
	}
	replacement.ID = batchID
	replacement.Number = old.Number
	replacement.Version = old.Version

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.engine.OnDispatchDeleted(ctx, batchID); err != nil {
			return err
		}
		if err := s.repo.DeleteWithRecords(ctx, batchID); err != nil {
			return err
		}

		if err := s.repo.Create(ctx, replacement); err != nil {
			return fmt.Errorf("recreate batch: %w", err)
		}
		for i := range replacement.Lines {
			line := &replacement.Lines[i]
			if id.IsNil(line.RecordID) {
				line.RecordID = id.New()
			}
			err := s.engine.AdmitDispatch(ctx, reconcile.DispatchInsert{
				RecordID:    line.RecordID,
				BatchID:     replacement.ID,
				OrderLineID: line.OrderLineID,
				LotID:       line.LotID,
				Quantity:    line.Quantity,
			})
			if err != nil {
				return err
			}
		}
		return s.engine.OnDispatchCreated(ctx, replacement.OrderLineIDs(), replacement.ID)
	})
	if err != nil {
		return err
	}

	if err := s.hooks.RunAfterUpdate(ctx, replacement); err != nil {
		logger.Warn(ctx, "after-update hook failed", "error", err)
	}

	logger.Info(ctx, "dispatch batch replaced",
		"id", batchID,
		"number", replacement.Number,
		"lines", len(replacement.Lines))

	return nil
}

// List retrieves dispatch batches with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*DispatchBatch], error) {
	return s.repo.List(ctx, filter)
}
