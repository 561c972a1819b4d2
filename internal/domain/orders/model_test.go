package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/reconcile"
)

func qty(v float64) types.Quantity { return types.NewQuantityFromFloat64(v) }

func validOrder() *Order {
	ord := NewOrder(id.New())
	ord.AddLine("SKU-001", qty(10), types.NewMoney(2.5))
	return ord
}

func TestAddLineRecalculatesTotal(t *testing.T) {
	ord := NewOrder(id.New())
	ord.AddLine("A", qty(10), types.NewMoney(2))
	ord.AddLine("B", qty(3), types.NewMoney(5))

	assert.Equal(t, "35", ord.TotalAmount.String())
	assert.Equal(t, 1, ord.Lines[0].LineNo)
	assert.Equal(t, 2, ord.Lines[1].LineNo)
}

func TestEnsureLotsCreatesImplicitLot(t *testing.T) {
	ord := validOrder()
	ord.EnsureLots()

	require.Len(t, ord.Lines[0].Lots, 1)
	lot := ord.Lines[0].Lots[0]
	assert.Equal(t, qty(10), lot.PromisedQty, "implicit lot covers the whole line")
	assert.Equal(t, ord.Lines[0].LineID, lot.OrderLineID)
	assert.Equal(t, 1, lot.LotNo)
	assert.False(t, id.IsNil(lot.LotID))
}

func TestEnsureLotsKeepsExplicitSchedule(t *testing.T) {
	ord := validOrder()
	due := time.Now().AddDate(0, 1, 0)
	ord.Lines[0].AddLot(qty(4), &due)
	ord.Lines[0].AddLot(qty(6), nil)

	ord.EnsureLots()

	require.Len(t, ord.Lines[0].Lots, 2)
	assert.Equal(t, qty(4), ord.Lines[0].Lots[0].PromisedQty)
	assert.Equal(t, 2, ord.Lines[0].Lots[1].LotNo)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Order)
		wantErr bool
	}{
		{"valid", func(o *Order) {}, false},
		{"missing supplier", func(o *Order) { o.SupplierID = id.Nil() }, true},
		{"no lines", func(o *Order) { o.Lines = nil }, true},
		{"empty sku", func(o *Order) { o.Lines[0].SKU = "" }, true},
		{"zero promised", func(o *Order) { o.Lines[0].PromisedQty = 0 }, true},
		{"negative price", func(o *Order) { o.Lines[0].UnitPrice = types.NewMoney(-1) }, true},
		{"zero lot promised", func(o *Order) {
			o.Lines[0].AddLot(qty(0), nil)
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ord := validOrder()
			tt.mutate(ord)

			err := ord.Validate(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOrderStatusAggregatesLines(t *testing.T) {
	ord := validOrder()
	ord.AddLine("SKU-002", qty(20), types.NewMoney(1))

	ord.Lines[0].DispatchedQty = qty(10)
	ord.Lines[0].ReceivedQty = qty(10)

	// One line closed, one untouched: the order as a whole is still pending.
	ord.DeriveStatuses()
	assert.Equal(t, reconcile.StatusClosed, ord.Lines[0].Status)
	assert.Equal(t, reconcile.StatusPending, ord.Lines[1].Status)
	assert.Equal(t, reconcile.StatusPending, ord.Status())
}
