package invoices

import (
	"context"
	"fmt"

	"procura/internal/core/id"
	"procura/internal/core/tx"
	"procura/internal/domain/reconcile"
	"procura/pkg/logger"
)

// Repository defines storage operations for invoice signals.
type Repository interface {
	Insert(ctx context.Context, signals []*Signal) error
	ListByOrderLine(ctx context.Context, lineID id.ID) ([]Signal, error)
	// DeleteByNumber removes all signals of one invoice and returns the
	// order lines they referenced.
	DeleteByNumber(ctx context.Context, invoiceNumber string) ([]id.ID, error)
}

// Service records and withdraws invoice signals and keeps the ledger in step.
type Service struct {
	repo      Repository
	engine    *reconcile.Engine
	txManager tx.Manager
}

// NewService creates a new invoice signal service.
func NewService(repo Repository, engine *reconcile.Engine, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		engine:    engine,
		txManager: txManager,
	}
}

// Record stores the signals of one invoice and recalculates every referenced
// order line so the invoiced high-water-mark takes effect immediately.
func (s *Service) Record(ctx context.Context, signals []*Signal) error {
	for _, sig := range signals {
		if err := sig.Validate(ctx); err != nil {
			return err
		}
	}

	lineIDs := make([]id.ID, 0, len(signals))
	for _, sig := range signals {
		lineIDs = append(lineIDs, sig.OrderLineID)
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Insert(ctx, signals); err != nil {
			return fmt.Errorf("insert signals: %w", err)
		}
		for _, lineID := range distinct(lineIDs) {
			if err := s.engine.RecalculateLine(ctx, lineID, reconcile.Exclusion{}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "invoice signals recorded", "signals", len(signals))
	return nil
}

// Withdraw removes one invoice's signals and recalculates the lines they
// touched. Quantities already raised to the invoiced level stay put: recorded
// received is a high-water-mark and an invoice withdrawal is not an exclusion
// event.
func (s *Service) Withdraw(ctx context.Context, invoiceNumber string) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		lineIDs, err := s.repo.DeleteByNumber(ctx, invoiceNumber)
		if err != nil {
			return fmt.Errorf("delete signals: %w", err)
		}
		for _, lineID := range distinct(lineIDs) {
			if err := s.engine.RecalculateLine(ctx, lineID, reconcile.Exclusion{}); err != nil {
				return err
			}
		}
		return nil
	})
}

func distinct(ids []id.ID) []id.ID {
	seen := make(map[id.ID]struct{}, len(ids))
	out := make([]id.ID, 0, len(ids))
	for _, v := range ids {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
