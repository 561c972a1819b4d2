// Package receipt provides the Receipt document service.
package receipt

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

// Service provides business operations for receipts.
type Service struct {
	repo      Repository
	engine    *reconcile.Engine
	numerator numerator.Generator
	txManager tx.Manager
	hooks     *domain.HookRegistry[*Receipt]
}

// NewService creates a new receipt service.
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
		hooks:     domain.NewHookRegistry[*Receipt](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Receipt] {
	return s.hooks
}

// Ingest creates a receipt document and feeds its records through the
// reconciliation engine. Record-level validation happens inside the engine;
// any failure aborts the whole document.
func (s *Service) Ingest(ctx context.Context, rcpt *Receipt) error {
	if err := s.hooks.RunBeforeCreate(ctx, rcpt); err != nil {
		return err
	}

	if err := rcpt.Validate(ctx); err != nil {
		return err
	}

	if rcpt.Number == "" {
		cfg := numerator.DefaultConfig(NumberPrefix)
		number, err := s.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: NumeratorStrategy}, time.Now())
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		rcpt.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, rcpt); err != nil {
			return fmt.Errorf("create receipt: %w", err)
		}

		recs := make([]reconcile.ReceiptInsert, 0, len(rcpt.Lines))
		for i := range rcpt.Lines {
			line := &rcpt.Lines[i]
			if id.IsNil(line.RecordID) {
				line.RecordID = id.New()
			}
			recs = append(recs, reconcile.ReceiptInsert{
				RecordID:        line.RecordID,
				ReceiptID:       rcpt.ID,
				OrderLineID:     line.OrderLineID,
				LotID:           line.LotID,
				DispatchBatchID: line.DispatchBatchID,
				ReceivedQty:     line.ReceivedQty,
				RejectedQty:     line.RejectedQty,
			})
		}

		return s.engine.OnReceiptIngested(ctx, recs, rcpt.ID, rcpt.OrderID)
	})
	if err != nil {
		return err
	}

	if err := s.hooks.RunAfterCreate(ctx, rcpt); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "receipt ingested",
		"id", rcpt.ID,
		"number", rcpt.Number,
		"order_id", rcpt.OrderID,
		"lines", len(rcpt.Lines))

	return nil
}

// GetByID retrieves a receipt with its records.
func (s *Service) GetByID(ctx context.Context, receiptID id.ID) (*Receipt, error) {
	rcpt, err := s.repo.GetByID(ctx, receiptID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetLines(ctx, receiptID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	rcpt.Lines = lines

	return rcpt, nil
}

// Delete reverses a receipt: the ledger is re-derived with the receipt
// excluded, then the document and its records are removed.
func (s *Service) Delete(ctx context.Context, receiptID id.ID) error {
	rcpt, err := s.repo.GetByID(ctx, receiptID)
	if err != nil {
		return err
	}

	if err := s.hooks.RunBeforeDelete(ctx, rcpt); err != nil {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.engine.OnReceiptDeleted(ctx, receiptID); err != nil {
			return err
		}
		return s.repo.DeleteWithRecords(ctx, receiptID)
	})
	if err != nil {
		return err
	}

	if err := s.hooks.RunAfterDelete(ctx, rcpt); err != nil {
		logger.Warn(ctx, "after-delete hook failed", "error", err)
	}

	logger.Info(ctx, "receipt reversed",
		"id", receiptID,
		"number", rcpt.Number)

	return nil
}

// List retrieves receipts with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Receipt], error) {
	return s.repo.List(ctx, filter)
}
