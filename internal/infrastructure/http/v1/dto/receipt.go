package dto

import (
	"time"

	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/documents/receipt"
)

// --- Request DTOs ---

// CreateReceiptRequest represents a request to ingest a receipt.
type CreateReceiptRequest struct {
	Number          string               `json:"number,omitempty"`
	Date            time.Time            `json:"date" binding:"required"`
	OrderID         string               `json:"orderId" binding:"required"`
	DeliveryNoteRef string               `json:"deliveryNoteRef,omitempty"`
	Comment         string               `json:"comment,omitempty"`
	Lines           []ReceiptLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ReceiptLineRequest represents one receipt record in the request.
// ReceivedQty includes rejected goods: received = accepted + rejected.
type ReceiptLineRequest struct {
	OrderLineID     string  `json:"orderLineId" binding:"required"`
	LotID           string  `json:"lotId,omitempty"`
	DispatchBatchID string  `json:"dispatchBatchId,omitempty"`
	ReceivedQty     float64 `json:"receivedQty" binding:"required,gt=0"`
	RejectedQty     float64 `json:"rejectedQty,omitempty"`
}

// ToEntity converts request to domain entity.
func (r *CreateReceiptRequest) ToEntity() *receipt.Receipt {
	orderID, _ := id.Parse(r.OrderID)

	rcpt := receipt.NewReceipt(orderID)
	rcpt.Number = r.Number
	rcpt.Date = r.Date
	rcpt.DeliveryNoteRef = r.DeliveryNoteRef
	rcpt.Comment = r.Comment

	for _, line := range r.Lines {
		orderLineID, _ := id.Parse(line.OrderLineID)
		var lotID, batchID *id.ID
		if line.LotID != "" {
			if parsed, err := id.Parse(line.LotID); err == nil {
				lotID = &parsed
			}
		}
		if line.DispatchBatchID != "" {
			if parsed, err := id.Parse(line.DispatchBatchID); err == nil {
				batchID = &parsed
			}
		}
		rcpt.AddLine(orderLineID, lotID, batchID,
			types.NewQuantityFromFloat64(line.ReceivedQty),
			types.NewQuantityFromFloat64(line.RejectedQty))
	}

	return rcpt
}

// --- Response DTOs ---

// ReceiptResponse represents a receipt in API responses.
type ReceiptResponse struct {
	ID              string                `json:"id"`
	Number          string                `json:"number"`
	Date            time.Time             `json:"date"`
	OrderID         string                `json:"orderId"`
	DeliveryNoteRef string                `json:"deliveryNoteRef,omitempty"`
	TotalReceived   types.Quantity        `json:"totalReceived"`
	TotalRejected   types.Quantity        `json:"totalRejected"`
	Comment         string                `json:"comment,omitempty"`
	Lines           []ReceiptLineResponse `json:"lines,omitempty"`
	Version         int                   `json:"version"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

// ReceiptLineResponse represents one receipt record in API responses.
type ReceiptLineResponse struct {
	RecordID        string         `json:"recordId"`
	LineNo          int            `json:"lineNo"`
	OrderLineID     string         `json:"orderLineId"`
	LotID           *string        `json:"lotId,omitempty"`
	DispatchBatchID *string        `json:"dispatchBatchId,omitempty"`
	ReceivedQty     types.Quantity `json:"receivedQty"`
	RejectedQty     types.Quantity `json:"rejectedQty"`
}

// FromReceipt converts domain entity to response DTO.
func FromReceipt(rcpt *receipt.Receipt) ReceiptResponse {
	resp := ReceiptResponse{
		ID:              rcpt.ID.String(),
		Number:          rcpt.Number,
		Date:            rcpt.Date,
		OrderID:         rcpt.OrderID.String(),
		DeliveryNoteRef: rcpt.DeliveryNoteRef,
		TotalReceived:   rcpt.TotalReceived,
		TotalRejected:   rcpt.TotalRejected,
		Comment:         rcpt.Comment,
		Version:         rcpt.Version,
		CreatedAt:       rcpt.CreatedAt,
		UpdatedAt:       rcpt.UpdatedAt,
	}

	for _, line := range rcpt.Lines {
		lineResp := ReceiptLineResponse{
			RecordID:    line.RecordID.String(),
			LineNo:      line.LineNo,
			OrderLineID: line.OrderLineID.String(),
			ReceivedQty: line.ReceivedQty,
			RejectedQty: line.RejectedQty,
		}
		if line.LotID != nil {
			lotID := line.LotID.String()
			lineResp.LotID = &lotID
		}
		if line.DispatchBatchID != nil {
			batchID := line.DispatchBatchID.String()
			lineResp.DispatchBatchID = &batchID
		}
		resp.Lines = append(resp.Lines, lineResp)
	}

	return resp
}

// FromReceipts converts a slice for list responses (without lines).
func FromReceipts(items []*receipt.Receipt) []ReceiptResponse {
	out := make([]ReceiptResponse, 0, len(items))
	for _, rcpt := range items {
		out = append(out, FromReceipt(rcpt))
	}
	return out
}
