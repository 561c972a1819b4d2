package dto

import (
	"time"

	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/invoices"
)

// --- Request DTOs ---

// RecordInvoiceRequest records the line signals of one supplier invoice.
type RecordInvoiceRequest struct {
	InvoiceNumber string                     `json:"invoiceNumber" binding:"required"`
	InvoiceDate   *time.Time                 `json:"invoiceDate,omitempty"`
	Lines         []InvoiceSignalLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// InvoiceSignalLineRequest is one invoiced quantity against an order line.
type InvoiceSignalLineRequest struct {
	OrderLineID string  `json:"orderLineId" binding:"required"`
	LotID       string  `json:"lotId,omitempty"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
	Amount      string  `json:"amount,omitempty"`
}

// ToEntities converts the request into domain signals.
func (r *RecordInvoiceRequest) ToEntities() []*invoices.Signal {
	signals := make([]*invoices.Signal, 0, len(r.Lines))
	for _, line := range r.Lines {
		orderLineID, _ := id.Parse(line.OrderLineID)
		sig := invoices.NewSignal(r.InvoiceNumber, orderLineID, types.NewQuantityFromFloat64(line.Quantity))
		if r.InvoiceDate != nil {
			sig.InvoiceDate = *r.InvoiceDate
		}
		if line.LotID != "" {
			if parsed, err := id.Parse(line.LotID); err == nil {
				sig.LotID = &parsed
			}
		}
		if line.Amount != "" {
			if amount, err := types.NewMoneyFromString(line.Amount); err == nil {
				sig.Amount = amount
			}
		}
		signals = append(signals, sig)
	}
	return signals
}

// --- Response DTOs ---

// InvoiceSignalResponse represents a recorded signal in API responses.
type InvoiceSignalResponse struct {
	ID            string         `json:"id"`
	InvoiceNumber string         `json:"invoiceNumber"`
	InvoiceDate   time.Time      `json:"invoiceDate"`
	OrderLineID   string         `json:"orderLineId"`
	LotID         *string        `json:"lotId,omitempty"`
	Quantity      types.Quantity `json:"quantity"`
	Amount        types.Money    `json:"amount"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// FromSignals converts domain signals to response DTOs.
func FromSignals(signals []invoices.Signal) []InvoiceSignalResponse {
	out := make([]InvoiceSignalResponse, 0, len(signals))
	for _, sig := range signals {
		resp := InvoiceSignalResponse{
			ID:            sig.ID.String(),
			InvoiceNumber: sig.InvoiceNumber,
			InvoiceDate:   sig.InvoiceDate,
			OrderLineID:   sig.OrderLineID.String(),
			Quantity:      sig.Quantity,
			Amount:        sig.Amount,
			CreatedAt:     sig.CreatedAt,
		}
		if sig.LotID != nil {
			lotID := sig.LotID.String()
			resp.LotID = &lotID
		}
		out = append(out, resp)
	}
	return out
}
