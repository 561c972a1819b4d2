// Package report_repo builds read-only reporting queries over the ledger.
package report_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/domain/reports"
	"procura/internal/infrastructure/storage/postgres"
)

// ReportRepo is the PostgreSQL implementation of reports.Repository.
type ReportRepo struct {
	txManager *postgres.TxManager
}

// NewReportRepo creates a new report repository.
func NewReportRepo(txManager *postgres.TxManager) *ReportRepo {
	return &ReportRepo{txManager: txManager}
}

func (r *ReportRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// GetFulfillmentReport returns raw per-line quantities plus whole-set
// aggregates. Status derivation belongs to the service layer.
func (r *ReportRepo) GetFulfillmentReport(ctx context.Context, filter reports.FulfillmentFilter) (*reports.FulfillmentReport, error) {
	querier := r.txManager.GetQuerier(ctx)

	base := r.builder().
		Select().
		From("order_lines ol").
		Join("orders o ON o.id = ol.order_id").
		Where(squirrel.Eq{"o.deletion_mark": false})

	if filter.SupplierID != nil {
		base = base.Where(squirrel.Eq{"o.supplier_id": *filter.SupplierID})
	}
	if filter.OrderID != nil {
		base = base.Where(squirrel.Eq{"o.id": *filter.OrderID})
	}
	if filter.DateFrom != nil {
		base = base.Where(squirrel.GtOrEq{"o.date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		base = base.Where(squirrel.LtOrEq{"o.date": *filter.DateTo})
	}

	rowsQuery := base.Columns(
		"o.id AS order_id",
		"o.number AS order_number",
		"o.date AS order_date",
		"o.supplier_id",
		"ol.line_id",
		"ol.line_no",
		"ol.sku",
		"ol.promised_qty",
		"ol.dispatched_qty",
		"ol.received_qty",
		"ol.rejected_qty",
		"GREATEST(ol.promised_qty - ol.received_qty, 0) AS outstanding_qty",
	).
		OrderBy("o.date DESC", "o.number", "ol.line_no").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset))

	sql, args, err := rowsQuery.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build rows query: %w", err)
	}

	report := &reports.FulfillmentReport{Rows: []reports.FulfillmentRow{}}
	if err := pgxscan.Select(ctx, querier, &report.Rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select report rows: %w", err)
	}

	aggQuery := base.Columns(
		"COUNT(*)",
		"COALESCE(SUM(ol.promised_qty), 0)",
		"COALESCE(SUM(ol.dispatched_qty), 0)",
		"COALESCE(SUM(ol.received_qty), 0)",
		"COALESCE(SUM(ol.rejected_qty), 0)",
	)

	sql, args, err = aggQuery.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build aggregates query: %w", err)
	}

	err = querier.QueryRow(ctx, sql, args...).Scan(
		&report.TotalCount,
		&report.TotalPromised,
		&report.TotalDispatched,
		&report.TotalReceived,
		&report.TotalRejected,
	)
	if err != nil {
		return nil, fmt.Errorf("select report aggregates: %w", err)
	}

	return report, nil
}

var _ reports.Repository = (*ReportRepo)(nil)
