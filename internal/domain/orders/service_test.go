package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/core/numerator"
	"procura/internal/core/types"
	"procura/internal/domain"
	"procura/internal/domain/reconcile"
)

// --- fakes ---

type fakeRepo struct {
	orders        map[id.ID]*Order
	lines         map[id.ID][]Line
	hasDispatches bool
	createCalls   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders: make(map[id.ID]*Order),
		lines:  make(map[id.ID][]Line),
	}
}

func (r *fakeRepo) Create(_ context.Context, ord *Order) error {
	r.createCalls++
	cp := *ord
	r.orders[ord.ID] = &cp
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, orderID id.ID) (*Order, error) {
	ord, ok := r.orders[orderID]
	if !ok {
		return nil, apperror.NewNotFound("order", orderID.String())
	}
	cp := *ord
	return &cp, nil
}

func (r *fakeRepo) GetByNumber(_ context.Context, number string) (*Order, error) {
	for _, ord := range r.orders {
		if ord.Number == number {
			cp := *ord
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("order", number)
}

func (r *fakeRepo) Update(_ context.Context, ord *Order) error {
	cp := *ord
	r.orders[ord.ID] = &cp
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, orderID id.ID) error {
	delete(r.orders, orderID)
	return nil
}

func (r *fakeRepo) GetLines(_ context.Context, orderID id.ID) ([]Line, error) {
	return r.lines[orderID], nil
}

func (r *fakeRepo) SaveLines(_ context.Context, orderID id.ID, lines []Line) error {
	r.lines[orderID] = lines
	return nil
}

func (r *fakeRepo) SetLineOverride(_ context.Context, lineID id.ID, _ *types.Quantity) error {
	return apperror.NewNotFound("order_line", lineID.String())
}

func (r *fakeRepo) SetLotOverride(_ context.Context, lotID id.ID, _ *types.Quantity) (id.ID, error) {
	return id.Nil(), apperror.NewNotFound("order_lot", lotID.String())
}

func (r *fakeRepo) HasDispatches(_ context.Context, _ id.ID) (bool, error) {
	return r.hasDispatches, nil
}

func (r *fakeRepo) List(_ context.Context, _ ListFilter) (domain.ListResult[*Order], error) {
	return domain.ListResult[*Order]{}, nil
}

func (r *fakeRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*Order, error) {
	return r.GetByID(ctx, orderID)
}

var _ Repository = (*fakeRepo)(nil)

// ledgerStub satisfies reconcile.Repository for services whose tests never
// reach the quantity math. Orders under test own no ledger rows, so sync and
// recalculation are no-ops.
type ledgerStub struct{}

func (ledgerStub) GetLineForUpdate(_ context.Context, lineID id.ID) (*reconcile.Line, error) {
	return nil, apperror.NewNotFound("order_line", lineID.String())
}
func (ledgerStub) ListLots(context.Context, id.ID) ([]reconcile.Lot, error) { return nil, nil }
func (ledgerStub) SharedTotals(context.Context, id.ID, reconcile.Exclusion) (reconcile.Totals, error) {
	return reconcile.Totals{}, nil
}
func (ledgerStub) DirectTotals(context.Context, id.ID, reconcile.Exclusion) (reconcile.Totals, error) {
	return reconcile.Totals{}, nil
}
func (ledgerStub) RejectedTotal(context.Context, id.ID, reconcile.Exclusion) (types.Quantity, error) {
	return 0, nil
}
func (ledgerStub) InvoiceSignal(context.Context, id.ID, *id.ID) (types.Quantity, error) {
	return 0, nil
}
func (ledgerStub) ListLotDispatches(context.Context, id.ID, reconcile.Exclusion) ([]reconcile.LotDispatch, error) {
	return nil, nil
}
func (ledgerStub) SaveLotQuantities(context.Context, *reconcile.Lot) error    { return nil }
func (ledgerStub) SaveLineQuantities(context.Context, *reconcile.Line) error  { return nil }
func (ledgerStub) SaveRecordReceipt(context.Context, id.ID, types.Quantity, types.Quantity) error {
	return nil
}
func (ledgerStub) InsertDispatchRecord(context.Context, reconcile.DispatchInsert) error { return nil }
func (ledgerStub) InsertReceiptRecords(context.Context, []reconcile.ReceiptInsert) error {
	return nil
}
func (ledgerStub) LineIDsByOrder(context.Context, id.ID) ([]id.ID, error)         { return nil, nil }
func (ledgerStub) LineIDsByDispatchBatch(context.Context, id.ID) ([]id.ID, error) { return nil, nil }
func (ledgerStub) LineIDsByReceipt(context.Context, id.ID) ([]id.ID, error)       { return nil, nil }
func (ledgerStub) HasReceiptsForBatch(context.Context, id.ID) (bool, error)       { return false, nil }
func (ledgerStub) LockOrder(context.Context, id.ID) error                         { return nil }

var _ reconcile.Repository = ledgerStub{}

// noopTx runs the callback without a real transaction.
type noopTx struct{}

func (noopTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (noopTx) RunSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService(repo *fakeRepo, gen numerator.Generator) *Service {
	if gen == nil {
		gen = &numerator.MockGenerator{}
	}
	return NewService(repo, reconcile.NewEngine(ledgerStub{}), gen, noopTx{})
}

// --- tests ---

func TestIngestAssignsNumber(t *testing.T) {
	repo := newFakeRepo()
	gen := &numerator.MockGenerator{
		GetNextNumberFunc: func(_ context.Context, cfg numerator.Config, _ *numerator.Options, _ time.Time) (string, error) {
			return cfg.Prefix + "-2026-00042", nil
		},
	}
	svc := newTestService(repo, gen)

	ord := validOrder()
	require.NoError(t, svc.Ingest(context.Background(), ord))

	assert.Equal(t, NumberPrefix+"-2026-00042", ord.Number)
	assert.Equal(t, 1, repo.createCalls)
}

func TestIngestKeepsProvidedNumber(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil)

	ord := validOrder()
	ord.Number = "ORD-EXT-7"
	require.NoError(t, svc.Ingest(context.Background(), ord))

	assert.Equal(t, "ORD-EXT-7", ord.Number)
}

func TestIngestSavesImplicitLots(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil)

	ord := validOrder()
	require.NoError(t, svc.Ingest(context.Background(), ord))

	saved := repo.lines[ord.ID]
	require.Len(t, saved, 1)
	require.Len(t, saved[0].Lots, 1)
	assert.Equal(t, saved[0].PromisedQty, saved[0].Lots[0].PromisedQty)
}

func TestIngestValidationStopsBeforeRepo(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil)

	ord := NewOrder(id.Nil())
	ord.AddLine("SKU", qty(1), types.NewMoney(1))

	err := svc.Ingest(context.Background(), ord)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	assert.Zero(t, repo.createCalls)
}

func TestDeleteBlockedByDispatches(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil)

	ord := validOrder()
	require.NoError(t, svc.Ingest(context.Background(), ord))

	repo.hasDispatches = true
	err := svc.Delete(context.Background(), ord.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConflict))

	_, getErr := repo.GetByID(context.Background(), ord.ID)
	assert.NoError(t, getErr, "blocked delete leaves the order in place")
}

func TestSetLineOverrideRejectsNegative(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil)

	neg := qty(-1)
	err := svc.SetLineOverride(context.Background(), id.New(), &neg)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestHooksRunAroundIngest(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil)

	var events []string
	svc.Hooks().On(domain.BeforeCreate, func(_ context.Context, _ *Order) error {
		events = append(events, "before")
		return nil
	})
	svc.Hooks().On(domain.AfterCreate, func(_ context.Context, _ *Order) error {
		events = append(events, "after")
		return nil
	})

	require.NoError(t, svc.Ingest(context.Background(), validOrder()))
	assert.Equal(t, []string{"before", "after"}, events)
}
