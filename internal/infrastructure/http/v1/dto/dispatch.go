package dto

import (
	"time"

	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/documents/dispatch"
)

// --- Request DTOs ---

// CreateDispatchRequest represents a request to create a dispatch batch.
type CreateDispatchRequest struct {
	Number      string                `json:"number,omitempty"`
	Date        time.Time             `json:"date" binding:"required"`
	OrderID     string                `json:"orderId" binding:"required"`
	TrackingRef string                `json:"trackingRef,omitempty"`
	ETA         *time.Time            `json:"eta,omitempty"`
	Comment     string                `json:"comment,omitempty"`
	Lines       []DispatchLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// DispatchLineRequest represents one dispatch record in the request.
type DispatchLineRequest struct {
	OrderLineID string  `json:"orderLineId" binding:"required"`
	LotID       string  `json:"lotId,omitempty"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
}

// ToEntity converts request to domain entity.
func (r *CreateDispatchRequest) ToEntity() *dispatch.DispatchBatch {
	orderID, _ := id.Parse(r.OrderID)

	batch := dispatch.NewDispatchBatch(orderID)
	batch.Number = r.Number
	batch.Date = r.Date
	batch.TrackingRef = r.TrackingRef
	batch.ETA = r.ETA
	batch.Comment = r.Comment

	for _, line := range r.Lines {
		orderLineID, _ := id.Parse(line.OrderLineID)
		var lotID *id.ID
		if line.LotID != "" {
			if parsed, err := id.Parse(line.LotID); err == nil {
				lotID = &parsed
			}
		}
		batch.AddLine(orderLineID, lotID, types.NewQuantityFromFloat64(line.Quantity))
	}

	return batch
}

// --- Response DTOs ---

// DispatchResponse represents a dispatch batch in API responses.
type DispatchResponse struct {
	ID            string                 `json:"id"`
	Number        string                 `json:"number"`
	Date          time.Time              `json:"date"`
	OrderID       string                 `json:"orderId"`
	TrackingRef   string                 `json:"trackingRef,omitempty"`
	ETA           *time.Time             `json:"eta,omitempty"`
	TotalQuantity types.Quantity         `json:"totalQuantity"`
	Comment       string                 `json:"comment,omitempty"`
	Lines         []DispatchLineResponse `json:"lines,omitempty"`
	Version       int                    `json:"version"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// DispatchLineResponse represents one dispatch record in API responses.
type DispatchLineResponse struct {
	RecordID    string         `json:"recordId"`
	LineNo      int            `json:"lineNo"`
	OrderLineID string         `json:"orderLineId"`
	LotID       *string        `json:"lotId,omitempty"`
	Quantity    types.Quantity `json:"quantity"`
	ReceivedQty types.Quantity `json:"receivedQty"`
	RejectedQty types.Quantity `json:"rejectedQty"`
}

// FromDispatch converts domain entity to response DTO.
func FromDispatch(batch *dispatch.DispatchBatch) DispatchResponse {
	resp := DispatchResponse{
		ID:            batch.ID.String(),
		Number:        batch.Number,
		Date:          batch.Date,
		OrderID:       batch.OrderID.String(),
		TrackingRef:   batch.TrackingRef,
		ETA:           batch.ETA,
		TotalQuantity: batch.TotalQuantity,
		Comment:       batch.Comment,
		Version:       batch.Version,
		CreatedAt:     batch.CreatedAt,
		UpdatedAt:     batch.UpdatedAt,
	}

	for _, line := range batch.Lines {
		lineResp := DispatchLineResponse{
			RecordID:    line.RecordID.String(),
			LineNo:      line.LineNo,
			OrderLineID: line.OrderLineID.String(),
			Quantity:    line.Quantity,
			ReceivedQty: line.ReceivedQty,
			RejectedQty: line.RejectedQty,
		}
		if line.LotID != nil {
			lotID := line.LotID.String()
			lineResp.LotID = &lotID
		}
		resp.Lines = append(resp.Lines, lineResp)
	}

	return resp
}

// FromDispatches converts a slice for list responses (without lines).
func FromDispatches(items []*dispatch.DispatchBatch) []DispatchResponse {
	out := make([]DispatchResponse, 0, len(items))
	for _, batch := range items {
		out = append(out, FromDispatch(batch))
	}
	return out
}
