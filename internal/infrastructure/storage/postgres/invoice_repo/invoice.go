// Package invoice_repo stores invoice line signals in PostgreSQL.
package invoice_repo

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/core/id"
	"procura/internal/domain/invoices"
	"procura/internal/infrastructure/storage/postgres"
)

// InvoiceRepo is the PostgreSQL implementation of invoices.Repository.
type InvoiceRepo struct {
	txManager *postgres.TxManager
}

// NewInvoiceRepo creates a new invoice signal repository.
func NewInvoiceRepo(txManager *postgres.TxManager) *InvoiceRepo {
	return &InvoiceRepo{txManager: txManager}
}

func (r *InvoiceRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Insert stores the signals of one invoice in a single round-trip.
func (r *InvoiceRepo) Insert(ctx context.Context, signals []*invoices.Signal) error {
	queries := make([]postgres.BatchQuery, 0, len(signals))
	for _, sig := range signals {
		queries = append(queries, postgres.BatchQuery{
			SQL: `
				INSERT INTO invoice_signals
					(id, invoice_number, invoice_date, order_line_id, lot_id,
					 quantity, amount, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`,
			Args: []any{
				sig.ID, sig.InvoiceNumber, sig.InvoiceDate, sig.OrderLineID,
				sig.LotID, sig.Quantity, sig.Amount, sig.CreatedAt,
			},
		})
	}
	if err := postgres.ExecuteBatch(ctx, r.txManager, queries); err != nil {
		return fmt.Errorf("insert invoice signals: %w", err)
	}
	return nil
}

// ListByOrderLine returns all signals recorded against a line.
func (r *InvoiceRepo) ListByOrderLine(ctx context.Context, lineID id.ID) ([]invoices.Signal, error) {
	var signals []invoices.Signal
	err := pgxscan.Select(ctx, r.querier(ctx), &signals, `
		SELECT id, invoice_number, invoice_date, order_line_id, lot_id,
		       quantity, amount, created_at
		FROM invoice_signals
		WHERE order_line_id = $1
		ORDER BY invoice_date, invoice_number
	`, lineID)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	return signals, nil
}

// DeleteByNumber removes all signals of one invoice and returns the order
// lines they referenced.
func (r *InvoiceRepo) DeleteByNumber(ctx context.Context, invoiceNumber string) ([]id.ID, error) {
	var lineIDs []id.ID
	err := pgxscan.Select(ctx, r.querier(ctx), &lineIDs, `
		DELETE FROM invoice_signals
		WHERE invoice_number = $1
		RETURNING order_line_id
	`, invoiceNumber)
	if err != nil {
		return nil, fmt.Errorf("delete signals: %w", err)
	}
	return lineIDs, nil
}

var _ invoices.Repository = (*InvoiceRepo)(nil)
