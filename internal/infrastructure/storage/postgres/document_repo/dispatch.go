package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/core/id"
	"procura/internal/domain"
	"procura/internal/domain/documents/dispatch"
	"procura/internal/infrastructure/storage/postgres"
)

// DispatchRepo is the PostgreSQL implementation of dispatch.Repository.
type DispatchRepo struct {
	*BaseDocumentRepo[*dispatch.DispatchBatch]
}

var (
	dispatchCols = postgres.ExtractDBColumns[dispatch.DispatchBatch]()

	dispatchRecordCols = []string{
		"record_id", "line_no", "order_line_id", "lot_id",
		"quantity", "received_qty", "rejected_qty",
	}
)

// NewDispatchRepo creates a new dispatch batch repository.
func NewDispatchRepo(txManager *postgres.TxManager) *DispatchRepo {
	return &DispatchRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			"dispatch_batches",
			dispatchCols,
			func() *dispatch.DispatchBatch { return &dispatch.DispatchBatch{} },
		),
	}
}

// GetLines reads the batch's dispatch records.
func (r *DispatchRepo) GetLines(ctx context.Context, batchID id.ID) ([]dispatch.Line, error) {
	q := r.Builder().
		Select(dispatchRecordCols...).
		From("dispatch_records").
		Where(squirrel.Eq{"dispatch_batch_id": batchID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build records query: %w", err)
	}

	var lines []dispatch.Line
	if err := pgxscan.Select(ctx, r.Querier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	return lines, nil
}

// DeleteWithRecords hard-deletes the batch header and its records.
func (r *DispatchRepo) DeleteWithRecords(ctx context.Context, batchID id.ID) error {
	querier := r.Querier(ctx)

	if _, err := querier.Exec(ctx,
		`DELETE FROM dispatch_records WHERE dispatch_batch_id = $1`, batchID); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return r.HardDelete(ctx, batchID)
}

// List retrieves dispatch batches with filtering.
func (r *DispatchRepo) List(ctx context.Context, filter dispatch.ListFilter) (domain.ListResult[*dispatch.DispatchBatch], error) {
	return r.ListWith(ctx, filter.ListFilter, func(q squirrel.SelectBuilder) squirrel.SelectBuilder {
		if filter.OrderID != nil {
			q = q.Where(squirrel.Eq{"order_id": *filter.OrderID})
		}
		if filter.DateFrom != nil {
			q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
		}
		if filter.DateTo != nil {
			q = q.Where(squirrel.LtOrEq{"date": *filter.DateTo})
		}
		return q
	})
}

var _ dispatch.Repository = (*DispatchRepo)(nil)
