package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
)

func createRequest(unitPrice string) *CreateOrderRequest {
	return &CreateOrderRequest{
		Date:       time.Now(),
		SupplierID: id.New().String(),
		Lines: []OrderLineRequest{
			{SKU: "SKU-1", PromisedQty: 10, UnitPrice: unitPrice},
		},
	}
}

func TestCreateOrderRequestParsesUnitPrice(t *testing.T) {
	ord, err := createRequest("12.50").ToEntity()
	require.NoError(t, err)
	require.Len(t, ord.Lines, 1)
	assert.Equal(t, "12.5", ord.Lines[0].UnitPrice.String())
}

func TestCreateOrderRequestRejectsMalformedUnitPrice(t *testing.T) {
	ord, err := createRequest("12,50 EUR").ToEntity()
	require.Error(t, err)
	assert.Nil(t, ord)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 1, appErr.Details["lineNo"])
}

func TestAmendOrderRequestRejectsMalformedUnitPrice(t *testing.T) {
	ord, err := createRequest("").ToEntity()
	require.NoError(t, err)

	req := &AmendOrderRequest{
		Lines: []OrderLineRequest{
			{SKU: "SKU-1", PromisedQty: 10, UnitPrice: "not-a-price"},
		},
	}
	err = req.ApplyTo(ord)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestAmendOrderRequestEmptyPriceKeepsZero(t *testing.T) {
	ord, err := createRequest("").ToEntity()
	require.NoError(t, err)

	req := &AmendOrderRequest{
		Lines: []OrderLineRequest{
			{SKU: "SKU-1", PromisedQty: 10},
		},
	}
	require.NoError(t, req.ApplyTo(ord))
	assert.True(t, ord.Lines[0].UnitPrice.IsZero())
}
