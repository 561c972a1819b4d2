package ledger_repo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/reconcile"
	"procura/internal/infrastructure/storage/postgres"
)

// recordingQuerier captures every statement issued by the repository so the
// admission sequence can be checked without a live database.
type recordingQuerier struct {
	statements []string
	rowErr     error
	execTag    pgconn.CommandTag
}

func (q *recordingQuerier) GetQuerier(_ context.Context) postgres.Querier { return q }

func (q *recordingQuerier) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	q.statements = append(q.statements, sql)
	return q.execTag, nil
}

func (q *recordingQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	q.statements = append(q.statements, sql)
	return nil, errors.New("unexpected Query call")
}

func (q *recordingQuerier) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	q.statements = append(q.statements, sql)
	return stubRow{err: q.rowErr}
}

type stubRow struct{ err error }

func (r stubRow) Scan(_ ...any) error { return r.err }

func admittedInsert(t *testing.T, q *recordingQuerier, lotID *id.ID) {
	t.Helper()
	repo := &LedgerRepo{source: q}
	err := repo.InsertDispatchRecord(context.Background(), reconcile.DispatchInsert{
		RecordID:    id.New(),
		BatchID:     id.New(),
		OrderLineID: id.New(),
		LotID:       lotID,
		Quantity:    types.NewQuantityFromFloat64(5),
	})
	if err != nil {
		t.Fatalf("InsertDispatchRecord failed: %v", err)
	}
}

func TestAdmissionLocksLotBeforeInsert(t *testing.T) {
	q := &recordingQuerier{execTag: pgconn.NewCommandTag("INSERT 0 1")}
	lotID := id.New()

	admittedInsert(t, q, &lotID)

	if len(q.statements) != 2 {
		t.Fatalf("statement count mismatch\nwant: 2\ngot:  %d", len(q.statements))
	}
	if q.statements[0] != lockLotForAdmission {
		t.Errorf("first statement mismatch\nwant: %s\ngot:  %s", lockLotForAdmission, q.statements[0])
	}
	if !strings.Contains(q.statements[0], "FOR UPDATE") {
		t.Errorf("lock statement missing FOR UPDATE: %s", q.statements[0])
	}
	if !strings.Contains(q.statements[1], "INSERT INTO dispatch_records") {
		t.Errorf("second statement is not the conditional insert: %s", q.statements[1])
	}
}

func TestAdmissionLocksLineBeforeInsert(t *testing.T) {
	q := &recordingQuerier{execTag: pgconn.NewCommandTag("INSERT 0 1")}

	admittedInsert(t, q, nil)

	if len(q.statements) != 2 {
		t.Fatalf("statement count mismatch\nwant: 2\ngot:  %d", len(q.statements))
	}
	if q.statements[0] != lockLineForAdmission {
		t.Errorf("first statement mismatch\nwant: %s\ngot:  %s", lockLineForAdmission, q.statements[0])
	}
	if !strings.Contains(q.statements[1], "order_lines") {
		t.Errorf("insert must check whole-line capacity: %s", q.statements[1])
	}
}

func TestAdmissionLockMissingTarget(t *testing.T) {
	q := &recordingQuerier{rowErr: pgx.ErrNoRows}
	repo := &LedgerRepo{source: q}
	lotID := id.New()

	err := repo.InsertDispatchRecord(context.Background(), reconcile.DispatchInsert{
		RecordID:    id.New(),
		BatchID:     id.New(),
		OrderLineID: id.New(),
		LotID:       &lotID,
		Quantity:    types.NewQuantityFromFloat64(5),
	})

	if !apperror.IsCode(err, apperror.CodeNotFound) {
		t.Fatalf("error mismatch\nwant: NOT_FOUND\ngot:  %v", err)
	}
	if len(q.statements) != 1 {
		t.Errorf("nothing may run after a failed lock\nwant: 1 statement\ngot:  %d", len(q.statements))
	}
}
