package reconcile

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/core/types"
)

// --- in-memory fake of Repository ---

type fakeDispatch struct {
	DispatchInsert
	received types.Quantity
	rejected types.Quantity
	batchSeq int
}

type fakeInvoice struct {
	lineID id.ID
	lotID  *id.ID
	qty    types.Quantity
}

type fakeStore struct {
	lines      map[id.ID]*Line
	lotsByLine map[id.ID][]*Lot
	orderLines map[id.ID][]id.ID
	dispatches []*fakeDispatch
	receipts   []*ReceiptInsert
	invoices   []fakeInvoice
	batchSeq   map[id.ID]int
	nextSeq    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		lines:      make(map[id.ID]*Line),
		lotsByLine: make(map[id.ID][]*Lot),
		orderLines: make(map[id.ID][]id.ID),
		batchSeq:   make(map[id.ID]int),
	}
}

func (s *fakeStore) addLine(orderID id.ID, promised types.Quantity, lotPromised ...types.Quantity) *Line {
	line := &Line{ID: id.New(), OrderID: orderID, PromisedQty: promised}
	s.lines[line.ID] = line
	s.orderLines[orderID] = append(s.orderLines[orderID], line.ID)
	for i, p := range lotPromised {
		s.lotsByLine[line.ID] = append(s.lotsByLine[line.ID], &Lot{
			ID:          id.New(),
			OrderLineID: line.ID,
			LotNo:       i + 1,
			PromisedQty: p,
		})
	}
	return line
}

func (s *fakeStore) lot(lineID id.ID, lotNo int) *Lot {
	for _, l := range s.lotsByLine[lineID] {
		if l.LotNo == lotNo {
			return l
		}
	}
	return nil
}

func (s *fakeStore) seqFor(batchID id.ID) int {
	if seq, ok := s.batchSeq[batchID]; ok {
		return seq
	}
	s.nextSeq++
	s.batchSeq[batchID] = s.nextSeq
	return s.nextSeq
}

func (s *fakeStore) deleteBatch(batchID id.ID) {
	kept := s.dispatches[:0]
	for _, d := range s.dispatches {
		if d.BatchID != batchID {
			kept = append(kept, d)
		}
	}
	s.dispatches = kept
}

func (s *fakeStore) deleteReceipt(receiptID id.ID) {
	kept := s.receipts[:0]
	for _, r := range s.receipts {
		if r.ReceiptID != receiptID {
			kept = append(kept, r)
		}
	}
	s.receipts = kept
}

func (s *fakeStore) GetLineForUpdate(_ context.Context, lineID id.ID) (*Line, error) {
	line, ok := s.lines[lineID]
	if !ok {
		return nil, apperror.NewNotFound("order_line", lineID.String())
	}
	cp := *line
	return &cp, nil
}

func (s *fakeStore) ListLots(_ context.Context, lineID id.ID) ([]Lot, error) {
	lots := s.lotsByLine[lineID]
	out := make([]Lot, 0, len(lots))
	for _, l := range lots {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LotNo < out[j].LotNo })
	return out, nil
}

func (s *fakeStore) SharedTotals(_ context.Context, lineID id.ID, excl Exclusion) (Totals, error) {
	var t Totals
	for _, d := range s.dispatches {
		if d.OrderLineID == lineID && d.LotID == nil && d.BatchID != excl.DispatchBatchID {
			t.Dispatched += d.Quantity
		}
	}
	for _, r := range s.receipts {
		if r.OrderLineID == lineID && r.LotID == nil && r.ReceiptID != excl.ReceiptID {
			t.Received += r.ReceivedQty
			t.Rejected += r.RejectedQty
		}
	}
	return t, nil
}

func (s *fakeStore) DirectTotals(_ context.Context, lotID id.ID, excl Exclusion) (Totals, error) {
	var t Totals
	for _, d := range s.dispatches {
		if d.LotID != nil && *d.LotID == lotID && d.BatchID != excl.DispatchBatchID {
			t.Dispatched += d.Quantity
		}
	}
	for _, r := range s.receipts {
		if r.LotID != nil && *r.LotID == lotID && r.ReceiptID != excl.ReceiptID {
			t.Received += r.ReceivedQty
			t.Rejected += r.RejectedQty
		}
	}
	return t, nil
}

func (s *fakeStore) RejectedTotal(_ context.Context, lineID id.ID, excl Exclusion) (types.Quantity, error) {
	var total types.Quantity
	for _, r := range s.receipts {
		if r.OrderLineID == lineID && r.ReceiptID != excl.ReceiptID {
			total += r.RejectedQty
		}
	}
	return total, nil
}

func (s *fakeStore) InvoiceSignal(_ context.Context, lineID id.ID, lotID *id.ID) (types.Quantity, error) {
	var total types.Quantity
	for _, inv := range s.invoices {
		if inv.lineID != lineID {
			continue
		}
		if lotID == nil && inv.lotID == nil {
			total += inv.qty
		}
		if lotID != nil && inv.lotID != nil && *inv.lotID == *lotID {
			total += inv.qty
		}
	}
	return total, nil
}

func (s *fakeStore) ListLotDispatches(_ context.Context, lotID id.ID, excl Exclusion) ([]LotDispatch, error) {
	var out []LotDispatch
	for _, d := range s.dispatches {
		if d.LotID != nil && *d.LotID == lotID && d.BatchID != excl.DispatchBatchID {
			out = append(out, LotDispatch{
				RecordID:   d.RecordID,
				BatchID:    d.BatchID,
				Dispatched: d.Quantity,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return s.batchSeq[out[i].BatchID] < s.batchSeq[out[j].BatchID]
	})
	return out, nil
}

func (s *fakeStore) SaveLotQuantities(_ context.Context, lot *Lot) error {
	for _, l := range s.lotsByLine[lot.OrderLineID] {
		if l.ID == lot.ID {
			l.DispatchedQty = lot.DispatchedQty
			l.ReceivedQty = lot.ReceivedQty
			return nil
		}
	}
	return apperror.NewNotFound("order_lot", lot.ID.String())
}

func (s *fakeStore) SaveLineQuantities(_ context.Context, line *Line) error {
	stored, ok := s.lines[line.ID]
	if !ok {
		return apperror.NewNotFound("order_line", line.ID.String())
	}
	stored.DispatchedQty = line.DispatchedQty
	stored.ReceivedQty = line.ReceivedQty
	stored.RejectedQty = line.RejectedQty
	return nil
}

func (s *fakeStore) SaveRecordReceipt(_ context.Context, recordID id.ID, received, rejected types.Quantity) error {
	for _, d := range s.dispatches {
		if d.RecordID == recordID {
			d.received = received
			d.rejected = rejected
			return nil
		}
	}
	return apperror.NewNotFound("dispatch_record", recordID.String())
}

func (s *fakeStore) InsertDispatchRecord(_ context.Context, rec DispatchInsert) error {
	var promised, dispatched types.Quantity
	var target string
	var targetID id.ID

	if rec.LotID != nil {
		lotFound := false
		for _, lots := range s.lotsByLine {
			for _, l := range lots {
				if l.ID == *rec.LotID {
					promised = l.PromisedQty
					lotFound = true
				}
			}
		}
		if !lotFound {
			return apperror.NewNotFound("order_lot", rec.LotID.String())
		}
		for _, d := range s.dispatches {
			if d.LotID != nil && *d.LotID == *rec.LotID {
				dispatched += d.Quantity
			}
		}
		target, targetID = "order_lot", *rec.LotID
	} else {
		line, ok := s.lines[rec.OrderLineID]
		if !ok {
			return apperror.NewNotFound("order_line", rec.OrderLineID.String())
		}
		promised = line.PromisedQty
		for _, d := range s.dispatches {
			if d.OrderLineID == rec.OrderLineID {
				dispatched += d.Quantity
			}
		}
		target, targetID = "order_line", rec.OrderLineID
	}

	remaining := promised - dispatched
	if !rec.Quantity.LteWithin(remaining) {
		return apperror.NewInsufficientCapacity(target, targetID.String(), rec.Quantity, remaining.Clamped())
	}

	s.dispatches = append(s.dispatches, &fakeDispatch{
		DispatchInsert: rec,
		batchSeq:       s.seqFor(rec.BatchID),
	})
	return nil
}

func (s *fakeStore) InsertReceiptRecords(_ context.Context, recs []ReceiptInsert) error {
	for i := range recs {
		cp := recs[i]
		s.receipts = append(s.receipts, &cp)
	}
	return nil
}

func (s *fakeStore) LineIDsByOrder(_ context.Context, orderID id.ID) ([]id.ID, error) {
	return s.orderLines[orderID], nil
}

func (s *fakeStore) LineIDsByDispatchBatch(_ context.Context, batchID id.ID) ([]id.ID, error) {
	seen := make(map[id.ID]struct{})
	var out []id.ID
	for _, d := range s.dispatches {
		if d.BatchID == batchID {
			if _, ok := seen[d.OrderLineID]; !ok {
				seen[d.OrderLineID] = struct{}{}
				out = append(out, d.OrderLineID)
			}
		}
	}
	return out, nil
}

func (s *fakeStore) LineIDsByReceipt(_ context.Context, receiptID id.ID) ([]id.ID, error) {
	seen := make(map[id.ID]struct{})
	var out []id.ID
	for _, r := range s.receipts {
		if r.ReceiptID == receiptID {
			if _, ok := seen[r.OrderLineID]; !ok {
				seen[r.OrderLineID] = struct{}{}
				out = append(out, r.OrderLineID)
			}
		}
	}
	return out, nil
}

func (s *fakeStore) HasReceiptsForBatch(_ context.Context, batchID id.ID) (bool, error) {
	for _, r := range s.receipts {
		if r.DispatchBatchID != nil && *r.DispatchBatchID == batchID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) LockOrder(_ context.Context, _ id.ID) error { return nil }

var _ Repository = (*fakeStore)(nil)

// --- helpers ---

func qty(v float64) types.Quantity { return types.NewQuantityFromFloat64(v) }

type lineState struct {
	dispatched, received, rejected types.Quantity
	lots                           []Lot
}

func snapshot(t *testing.T, s *fakeStore, lineID id.ID) lineState {
	t.Helper()
	line := s.lines[lineID]
	lots, err := s.ListLots(context.Background(), lineID)
	require.NoError(t, err)
	return lineState{
		dispatched: line.DispatchedQty,
		received:   line.ReceivedQty,
		rejected:   line.RejectedQty,
		lots:       lots,
	}
}

func dispatchBatch(t *testing.T, e *Engine, s *fakeStore, lineID id.ID, lotID *id.ID, q types.Quantity) id.ID {
	t.Helper()
	batchID := id.New()
	require.NoError(t, e.AdmitDispatch(context.Background(), DispatchInsert{
		BatchID:     batchID,
		OrderLineID: lineID,
		LotID:       lotID,
		Quantity:    q,
	}))
	require.NoError(t, e.OnDispatchCreated(context.Background(), []id.ID{lineID}, batchID))
	return batchID
}

// --- tests ---

func TestSharedPoolDistribution(t *testing.T) {
	s := newFakeStore()
	e := NewEngine(s)
	line := s.addLine(id.New(), qty(15), qty(5), qty(10))

	dispatchBatch(t, e, s, line.ID, nil, qty(12))

	assert.Equal(t, qty(5), s.lot(line.ID, 1).DispatchedQty, "first lot fills to promised")
	assert.Equal(t, qty(7), s.lot(line.ID, 2).DispatchedQty, "second lot takes the rest")
	assert.Equal(t, qty(12), s.lines[line.ID].DispatchedQty)
}

func TestLastLotAbsorbsOverflow(t *testing.T) {
	s := newFakeStore()
	e := NewEngine(s)
	// Lot definitions are inconsistent with the line total; nothing may be dropped.
	line := s.addLine(id.New(), qty(20), qty(5), qty(5))

	dispatchBatch(t, e, s, line.ID, nil, qty(15))

	assert.Equal(t, qty(5), s.lot(line.ID, 1).DispatchedQty)
	assert.Equal(t, qty(10), s.lot(line.ID, 2).DispatchedQty, "last lot absorbs overflow")
	assert.Equal(t, qty(15), s.lines[line.ID].DispatchedQty)
}

func TestAdmissionControlLotCapacity(t *testing.T) {
	s := newFakeStore()
	e := NewEngine(s)
	line := s.addLine(id.New(), qty(10), qty(10))
	lotID := s.lot(line.ID, 1).ID

	require.NoError(t, e.AdmitDispatch(context.Background(), DispatchInsert{
		BatchID: id.New(), OrderLineID: line.ID, LotID: &lotID, Quantity: qty(10),
	}))

	err := e.AdmitDispatch(context.Background(), DispatchInsert{
		BatchID: id.New(), OrderLineID: line.ID, LotID: &lotID, Quantity: qty(10),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientCapacity))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, lotID.String(), appErr.Details["target_id"])
}

func TestAdmissionControlExactCapacityOnce(t *testing.T) {
	s := newFakeStore()
	e := NewEngine(s)
	line := s.addLine(id.New(), qty(10), qty(10))
	lotID := s.lot(line.ID, 1).ID

	first := e.AdmitDispatch(context.Background(), DispatchInsert{
		BatchID: id.New(), OrderLineID: line.ID, LotID: &lotID, Quantity: qty(10),
	})
	second := e.AdmitDispatch(context.Background(), DispatchInsert{
		BatchID: id.New(), OrderLineID: line.ID, LotID: &lotID, Quantity: qty(10),
	})

	assert.NoError(t, first)
	assert.True(t, apperror.IsCode(second, apperror.CodeInsufficientCapacity))
}

func TestRecalculationIdempotent(t *testing.T) {
	s := newFakeStore()
	e := NewEngine(s)
	line := s.addLine(id.New(), qty(100), qty(60), qty(40))
	lotID := s.lot(line.ID, 1).ID

	dispatchBatch(t, e, s, line.ID, &lotID, qty(40))

	before := snapshot(t, s, line.ID)
	require.NoError(t, e.RecalculateLine(context.Background(), line.ID, Exclusion{}))
	after := snapshot(t, s, line.ID)

	assert.Equal(t, before, after)
}

func TestDispatchDeletionReversible(t *testing.T) {
	s := newFakeStore()
	e := NewEngine(s)
	ctx := context.Background()
	line := s.addLine(id.New(), qty(100), qty(60), qty(40))
	lotID := s.lot(line.ID, 1).ID

	dispatchBatch(t, e, s, line.ID, &lotID, qty(25))
	before := snapshot(t, s, line.ID)

	batchID := dispatchBatch(t, e, s, line.ID, &lotID, qty(15))
	assert.Equal(t, qty(40), s.lines[line.ID].DispatchedQty)

	require.NoError(t, e.OnDispatchDeleted(ctx, batchID))
	s.deleteBatch(batchID)

	assert.Equal(t, before, snapshot(t, s, line.ID), "deletion restores pre-batch state")
}

func TestReceiptDeletionReversible(t *testing.T) {
	s := newFakeStore()
	e := NewEngine(s)
	ctx := context.Background()
	line := s.addLine(id.New(), qty(50), qty(50))
	lotID := s.lot(line.ID, 1).ID

	batchID := dispatchBatch(t, e, s, line.ID, &lotID, qty(30))
	before := snapshot(t, s, line.ID)

	receiptID := id.New()
	require.NoError(t, e.OnReceiptIngested(ctx, []ReceiptInsert{{
		OrderLineID: line.ID, LotID: &lotID, DispatchBatchID: &batchID,
		ReceivedQty: qty(30), RejectedQty: qty(2),
	}}, receiptID, line.OrderID))

	assert.Equal(t, qty(30), s.lines[line.ID].ReceivedQty)
	assert.Equal(t, qty(2), s.lines[line.ID].RejectedQty)

	require.NoError(t, e.OnReceiptDeleted(ctx, receiptID))
	s.deleteReceipt(receiptID)

	assert.Equal(t, before, snapshot(t, s, line.ID))
}

func TestDispatchDeleteBlockedByReceipt(t *testing.T) {
	s := newFakeStore()
	e := NewEngine(s)
	ctx := context.Background()
	line := s.addLine(id.New(), qty(100), qty(60))
	lotID := s.lot(line.ID, 1).ID

	batchID := dispatchBatch(t, e, s, line.ID, &lotID, qty(40))
	require.NoError(t, e.OnReceiptIngested(ctx, []ReceiptInsert{{
		OrderLineID: line.ID, LotID: &lotID, DispatchBatchID: &batchID,
		ReceivedQty: qty(40), RejectedQty: qty(5),
	}}, id.New(), line.OrderID))

	err := e.OnDispatchDeleted(ctx, batchID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeReceiptAttached))
}

func TestFullScenarioDispatchReceiveReject(t *testing.T) {
	s := newFakeStore()
	e := NewEngine(s)
	ctx := context.Background()
	line := s.addLine(id.New(), qty(100), qty(60), qty(40))
	lot1 := s.lot(line.ID, 1).ID

	batchID := dispatchBatch(t, e, s, line.ID, &lot1, qty(40))
	require.NoError(t, e.OnReceiptIngested(ctx, []ReceiptInsert{{
		OrderLineID: line.ID, LotID: &lot1, DispatchBatchID: &batchID,
		ReceivedQty: qty(40), RejectedQty: qty(5),
	}}, id.New(), line.OrderID))

	assert.Equal(t, qty(40), s.lot(line.ID, 1).DispatchedQty)
	assert.Equal(t, qty(40), s.lot(line.ID, 1).ReceivedQty)
	assert.Equal(t, qty(40), s.lines[line.ID].ReceivedQty)
	assert.Equal(t, qty(5), s.lines[line.ID].RejectedQty)

	st := DeriveStatus(s.lines[line.ID].PromisedQty, s.lines[line.ID].DispatchedQty, s.lines[line.ID].ReceivedQty)
	assert.Equal(t, StatusPending, st)
}

func TestReceivedRaisesDispatched(t *testing.T) {
	// A receipt proves delivery even when the dispatch paper trail is missing.
	s := newFakeStore()
	e := NewEngine(s)
	ctx := context.Background()
	line := s.addLine(id.New(), qty(50), qty(50))
	lotID := s.lot(line.ID, 1).ID

	require.NoError(t, e.OnReceiptIngested(ctx, []ReceiptInsert{{
		OrderLineID: line.ID, LotID: &lotID, ReceivedQty: qty(20),
	}}, id.New(), line.OrderID))

	assert.Equal(t, qty(20), s.lot(line.ID, 1).ReceivedQty)
	assert.Equal(t, qty(20), s.lot(line.ID, 1).DispatchedQty, "dispatched follows received")
}

func TestInvoiceSignalRaisesReceived(t *testing.T) {
	s := newFakeStore()
	e := NewEngine(s)
	line := s.addLine(id.New(), qty(50), qty(50))
	lotID := s.lot(line.ID, 1).ID
	s.invoices = append(s.invoices, fakeInvoice{lineID: line.ID, lotID: &lotID, qty: qty(12)})

	require.NoError(t, e.RecalculateLine(context.Background(), line.ID, Exclusion{}))

	assert.Equal(t, qty(12), s.lot(line.ID, 1).ReceivedQty)
	assert.Equal(t, qty(12), s.lines[line.ID].ReceivedQty)
}

func TestLineInvoiceSignalRaisesReceived(t *testing.T) {
	s := newFakeStore()
	e := NewEngine(s)
	line := s.addLine(id.New(), qty(50), qty(50))
	// Signal references the line only; lot attribution is unknown.
	s.invoices = append(s.invoices, fakeInvoice{lineID: line.ID, qty: qty(12)})

	require.NoError(t, e.RecalculateLine(context.Background(), line.ID, Exclusion{}))

	assert.Equal(t, qty(12), s.lot(line.ID, 1).ReceivedQty)
	assert.Equal(t, qty(12), s.lines[line.ID].ReceivedQty)
}

func TestLineInvoiceSignalSpreadAcrossLots(t *testing.T) {
	s := newFakeStore()
	e := NewEngine(s)
	line := s.addLine(id.New(), qty(15), qty(5), qty(10))
	s.invoices = append(s.invoices, fakeInvoice{lineID: line.ID, qty: qty(12)})

	require.NoError(t, e.RecalculateLine(context.Background(), line.ID, Exclusion{}))

	assert.Equal(t, qty(5), s.lot(line.ID, 1).ReceivedQty, "first lot fills to promised")
	assert.Equal(t, qty(7), s.lot(line.ID, 2).ReceivedQty, "second lot takes the rest")
	assert.Equal(t, qty(12), s.lines[line.ID].ReceivedQty)
}

func TestLineInvoiceSignalCoveredByReceipts(t *testing.T) {
	s := newFakeStore()
	e := NewEngine(s)
	ctx := context.Background()
	line := s.addLine(id.New(), qty(50), qty(50))
	lotID := s.lot(line.ID, 1).ID

	require.NoError(t, e.OnReceiptIngested(ctx, []ReceiptInsert{{
		OrderLineID: line.ID, LotID: &lotID, ReceivedQty: qty(20),
	}}, id.New(), line.OrderID))
	s.invoices = append(s.invoices, fakeInvoice{lineID: line.ID, qty: qty(12)})

	require.NoError(t, e.RecalculateLine(ctx, line.ID, Exclusion{}))

	assert.Equal(t, qty(20), s.lines[line.ID].ReceivedQty, "signal already covered by receipts adds nothing")
}

func TestReceivedHighWaterMarkKept(t *testing.T) {
	s := newFakeStore()
	e := NewEngine(s)
	line := s.addLine(id.New(), qty(50), qty(50))
	// Legacy data: lot carries a received figure no live event corroborates.
	s.lot(line.ID, 1).ReceivedQty = qty(8)

	require.NoError(t, e.RecalculateLine(context.Background(), line.ID, Exclusion{}))

	assert.Equal(t, qty(8), s.lot(line.ID, 1).ReceivedQty, "recorded received never decreases without an exclusion")
}

func TestReceivedKeptWhenDispatchExcluded(t *testing.T) {
	// Only receipts carry received quantity, so removing a dispatch batch must
	// not erase a recorded received figure.
	s := newFakeStore()
	e := NewEngine(s)
	ctx := context.Background()
	line := s.addLine(id.New(), qty(50), qty(50))
	lotID := s.lot(line.ID, 1).ID
	s.lot(line.ID, 1).ReceivedQty = qty(8)

	batchID := dispatchBatch(t, e, s, line.ID, &lotID, qty(10))
	assert.Equal(t, qty(8), s.lot(line.ID, 1).ReceivedQty)

	require.NoError(t, e.OnDispatchDeleted(ctx, batchID))
	s.deleteBatch(batchID)

	assert.Equal(t, qty(8), s.lot(line.ID, 1).ReceivedQty)
	assert.Equal(t, qty(8), s.lines[line.ID].ReceivedQty)
	assert.Equal(t, qty(8), s.lines[line.ID].DispatchedQty, "dispatched follows received once the batch is gone")
}

func TestManualOverrideRaisesLine(t *testing.T) {
	s := newFakeStore()
	e := NewEngine(s)
	line := s.addLine(id.New(), qty(100), qty(100))
	lotID := s.lot(line.ID, 1).ID
	ov := qty(70)
	s.lines[line.ID].OverrideQty = &ov

	dispatchBatch(t, e, s, line.ID, &lotID, qty(40))

	assert.Equal(t, qty(70), s.lines[line.ID].DispatchedQty, "override raises reported dispatch")
	assert.Equal(t, qty(40), s.lot(line.ID, 1).DispatchedQty, "lot keeps system truth")
}

func TestManualOverrideSuppressedWhenFullyReceived(t *testing.T) {
	s := newFakeStore()
	e := NewEngine(s)
	ctx := context.Background()
	line := s.addLine(id.New(), qty(40), qty(40))
	lotID := s.lot(line.ID, 1).ID
	ov := qty(90)
	s.lines[line.ID].OverrideQty = &ov

	batchID := dispatchBatch(t, e, s, line.ID, &lotID, qty(40))
	require.NoError(t, e.OnReceiptIngested(ctx, []ReceiptInsert{{
		OrderLineID: line.ID, LotID: &lotID, DispatchBatchID: &batchID, ReceivedQty: qty(40),
	}}, id.New(), line.OrderID))

	assert.Equal(t, qty(40), s.lines[line.ID].DispatchedQty, "system total wins once fully received")
}

func TestPerBatchReceiptRedistribution(t *testing.T) {
	s := newFakeStore()
	e := NewEngine(s)
	ctx := context.Background()
	line := s.addLine(id.New(), qty(100), qty(100))
	lotID := s.lot(line.ID, 1).ID

	dispatchBatch(t, e, s, line.ID, &lotID, qty(30))
	dispatchBatch(t, e, s, line.ID, &lotID, qty(20))

	require.NoError(t, e.OnReceiptIngested(ctx, []ReceiptInsert{{
		OrderLineID: line.ID, LotID: &lotID, ReceivedQty: qty(45), RejectedQty: qty(3),
	}}, id.New(), line.OrderID))

	// Earliest batch absorbs up to its dispatched quantity, the rest flows on.
	require.Len(t, s.dispatches, 2)
	assert.Equal(t, qty(30), s.dispatches[0].received)
	assert.Equal(t, qty(15), s.dispatches[1].received)
	assert.Equal(t, qty(3), s.dispatches[0].rejected)
	assert.Equal(t, qty(0), s.dispatches[1].rejected)
}

func TestReceiptValidation(t *testing.T) {
	s := newFakeStore()
	e := NewEngine(s)
	ctx := context.Background()
	line := s.addLine(id.New(), qty(10), qty(10))

	tests := []struct {
		name string
		rec  ReceiptInsert
	}{
		{"missing line", ReceiptInsert{ReceivedQty: qty(5)}},
		{"zero received", ReceiptInsert{OrderLineID: line.ID, ReceivedQty: qty(0)}},
		{"negative rejected", ReceiptInsert{OrderLineID: line.ID, ReceivedQty: qty(5), RejectedQty: qty(-1)}},
		{"rejected exceeds received", ReceiptInsert{OrderLineID: line.ID, ReceivedQty: qty(5), RejectedQty: qty(6)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.OnReceiptIngested(ctx, []ReceiptInsert{tt.rec}, id.New(), line.OrderID)
			require.Error(t, err)
			assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
		})
	}

	assert.Empty(t, s.receipts, "validation failures leave no records behind")
}

func TestSyncOrderIdempotent(t *testing.T) {
	s := newFakeStore()
	e := NewEngine(s)
	ctx := context.Background()
	orderID := id.New()
	lineA := s.addLine(orderID, qty(30), qty(30))
	lineB := s.addLine(orderID, qty(20), qty(10), qty(10))
	lotA := s.lot(lineA.ID, 1).ID

	dispatchBatch(t, e, s, lineA.ID, &lotA, qty(30))
	dispatchBatch(t, e, s, lineB.ID, nil, qty(12))

	require.NoError(t, e.SyncOrder(ctx, orderID))
	first := []lineState{snapshot(t, s, lineA.ID), snapshot(t, s, lineB.ID)}

	require.NoError(t, e.SyncOrder(ctx, orderID))
	second := []lineState{snapshot(t, s, lineA.ID), snapshot(t, s, lineB.ID)}

	assert.Equal(t, first, second)
}

func TestAdmissionInvariantHolds(t *testing.T) {
	s := newFakeStore()
	e := NewEngine(s)
	line := s.addLine(id.New(), qty(25), qty(10), qty(15))
	lot1 := s.lot(line.ID, 1).ID
	lot2 := s.lot(line.ID, 2).ID

	dispatchBatch(t, e, s, line.ID, &lot1, qty(10))
	dispatchBatch(t, e, s, line.ID, &lot2, qty(15))

	err := e.AdmitDispatch(context.Background(), DispatchInsert{
		BatchID: id.New(), OrderLineID: line.ID, LotID: &lot1, Quantity: qty(0.5),
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientCapacity))

	assert.True(t, s.lines[line.ID].DispatchedQty.LteWithin(line.PromisedQty))
}
