package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"procura/internal/core/types"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name       string
		promised   float64
		dispatched float64
		received   float64
		want       Status
	}{
		{"nothing moved", 100, 0, 0, StatusPending},
		{"partial dispatch", 100, 40, 0, StatusPending},
		{"partial dispatch partial receipt", 100, 40, 40, StatusPending},
		{"fully dispatched", 100, 100, 0, StatusDelivered},
		{"over dispatched", 100, 105, 0, StatusDelivered},
		{"fully dispatched partial receipt", 100, 100, 60, StatusDelivered},
		{"fully received", 100, 100, 100, StatusClosed},
		{"received within tolerance", 100, 100, 99.9995, StatusClosed},
		{"received without dispatch trail", 100, 100, 100, StatusClosed},
		{"dispatched within tolerance", 100, 99.9995, 0, StatusDelivered},
		{"dispatch below tolerance", 100, 0.0005, 0, StatusPending},
		{"zero promised", 0, 0, 0, StatusClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStatus(
				types.NewQuantityFromFloat64(tt.promised),
				types.NewQuantityFromFloat64(tt.dispatched),
				types.NewQuantityFromFloat64(tt.received),
			)
			assert.Equal(t, tt.want, got)
		})
	}
}
