package dto

import (
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/orders"
)

// --- Request DTOs ---

// CreateOrderRequest represents a request to ingest an order.
type CreateOrderRequest struct {
	Number      string             `json:"number,omitempty"`
	Date        time.Time          `json:"date" binding:"required"`
	SupplierID  string             `json:"supplierId" binding:"required"`
	SupplierRef string             `json:"supplierRef,omitempty"`
	Currency    string             `json:"currency,omitempty"`
	Comment     string             `json:"comment,omitempty"`
	Lines       []OrderLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// OrderLineRequest represents a line in create/amend requests.
type OrderLineRequest struct {
	LineID      string            `json:"lineId,omitempty"`
	SKU         string            `json:"sku" binding:"required"`
	Description string            `json:"description,omitempty"`
	PromisedQty float64           `json:"promisedQty" binding:"required,gt=0"`
	UnitPrice   string            `json:"unitPrice,omitempty"`
	Lots        []OrderLotRequest `json:"lots,omitempty"`
}

// OrderLotRequest represents a delivery lot in create/amend requests.
type OrderLotRequest struct {
	LotID       string     `json:"lotId,omitempty"`
	PromisedQty float64    `json:"promisedQty" binding:"required,gt=0"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// ToEntity converts request to domain entity.
func (r *CreateOrderRequest) ToEntity() (*orders.Order, error) {
	supplierID, _ := id.Parse(r.SupplierID)

	ord := orders.NewOrder(supplierID)
	ord.Number = r.Number
	ord.Date = r.Date
	ord.SupplierRef = r.SupplierRef
	ord.Comment = r.Comment
	if r.Currency != "" {
		ord.Currency = r.Currency
	}

	for i, lineReq := range r.Lines {
		unitPrice, err := parseUnitPrice(lineReq.UnitPrice, i+1)
		if err != nil {
			return nil, err
		}
		line := ord.AddLine(lineReq.SKU, types.NewQuantityFromFloat64(lineReq.PromisedQty), unitPrice)
		line.Description = lineReq.Description
		if lineReq.LineID != "" {
			if parsed, err := id.Parse(lineReq.LineID); err == nil {
				line.LineID = parsed
			}
		}
		for _, lotReq := range lineReq.Lots {
			line.AddLot(types.NewQuantityFromFloat64(lotReq.PromisedQty), lotReq.DueDate)
			if lotReq.LotID != "" {
				if parsed, err := id.Parse(lotReq.LotID); err == nil {
					line.Lots[len(line.Lots)-1].LotID = parsed
				}
			}
		}
	}

	return ord, nil
}

// parseUnitPrice parses an optional unit price string; a malformed value is a
// validation error, not a zero price.
func parseUnitPrice(raw string, lineNo int) (types.Money, error) {
	if raw == "" {
		return types.ZeroMoney(), nil
	}
	price, err := types.NewMoneyFromString(raw)
	if err != nil {
		return types.ZeroMoney(), apperror.NewValidation("invalid unit price").
			WithDetail("lineNo", lineNo).
			WithDetail("unitPrice", raw)
	}
	return price, nil
}

// AmendOrderRequest represents a request to amend an order.
// Lines replace the whole table part; existing line/lot ids keep their ledger
// history, omitted ones are removed.
type AmendOrderRequest struct {
	Date        *time.Time         `json:"date,omitempty"`
	SupplierRef *string            `json:"supplierRef,omitempty"`
	Currency    *string            `json:"currency,omitempty"`
	Comment     *string            `json:"comment,omitempty"`
	Lines       []OrderLineRequest `json:"lines,omitempty"`
}

// ApplyTo applies the amendment to an existing entity.
func (r *AmendOrderRequest) ApplyTo(ord *orders.Order) error {
	if r.Date != nil {
		ord.Date = *r.Date
	}
	if r.SupplierRef != nil {
		ord.SupplierRef = *r.SupplierRef
	}
	if r.Currency != nil {
		ord.Currency = *r.Currency
	}
	if r.Comment != nil {
		ord.Comment = *r.Comment
	}

	if r.Lines != nil {
		ord.Lines = make([]orders.Line, 0, len(r.Lines))
		for i, lineReq := range r.Lines {
			unitPrice, err := parseUnitPrice(lineReq.UnitPrice, i+1)
			if err != nil {
				return err
			}
			line := ord.AddLine(lineReq.SKU, types.NewQuantityFromFloat64(lineReq.PromisedQty), unitPrice)
			line.Description = lineReq.Description
			if lineReq.LineID != "" {
				if parsed, err := id.Parse(lineReq.LineID); err == nil {
					line.LineID = parsed
				}
			}
			for _, lotReq := range lineReq.Lots {
				line.AddLot(types.NewQuantityFromFloat64(lotReq.PromisedQty), lotReq.DueDate)
				if lotReq.LotID != "" {
					if parsed, err := id.Parse(lotReq.LotID); err == nil {
						line.Lots[len(line.Lots)-1].LotID = parsed
					}
				}
			}
		}
	}

	return nil
}

// --- Response DTOs ---

// OrderResponse represents an order in API responses.
type OrderResponse struct {
	ID           string              `json:"id"`
	Number       string              `json:"number"`
	Date         time.Time           `json:"date"`
	SupplierID   string              `json:"supplierId"`
	SupplierRef  string              `json:"supplierRef,omitempty"`
	Currency     string              `json:"currency"`
	TotalAmount  types.Money         `json:"totalAmount"`
	Status       string              `json:"status"`
	Comment      string              `json:"comment,omitempty"`
	Lines        []OrderLineResponse `json:"lines,omitempty"`
	DeletionMark bool                `json:"deletionMark,omitempty"`
	Version      int                 `json:"version"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// OrderLineResponse represents an order line in API responses.
type OrderLineResponse struct {
	LineID        string             `json:"lineId"`
	LineNo        int                `json:"lineNo"`
	SKU           string             `json:"sku"`
	Description   string             `json:"description,omitempty"`
	PromisedQty   types.Quantity     `json:"promisedQty"`
	DispatchedQty types.Quantity     `json:"dispatchedQty"`
	ReceivedQty   types.Quantity     `json:"receivedQty"`
	RejectedQty   types.Quantity     `json:"rejectedQty"`
	OverrideQty   *types.Quantity    `json:"overrideQty,omitempty"`
	UnitPrice     types.Money        `json:"unitPrice"`
	Amount        types.Money        `json:"amount"`
	Status        string             `json:"status"`
	Lots          []OrderLotResponse `json:"lots,omitempty"`
}

// OrderLotResponse represents a delivery lot in API responses.
type OrderLotResponse struct {
	LotID         string          `json:"lotId"`
	LotNo         int             `json:"lotNo"`
	PromisedQty   types.Quantity  `json:"promisedQty"`
	DispatchedQty types.Quantity  `json:"dispatchedQty"`
	ReceivedQty   types.Quantity  `json:"receivedQty"`
	OverrideQty   *types.Quantity `json:"overrideQty,omitempty"`
	DueDate       *time.Time      `json:"dueDate,omitempty"`
}

// FromOrder converts domain entity to response DTO.
func FromOrder(ord *orders.Order) OrderResponse {
	resp := OrderResponse{
		ID:           ord.ID.String(),
		Number:       ord.Number,
		Date:         ord.Date,
		SupplierID:   ord.SupplierID.String(),
		SupplierRef:  ord.SupplierRef,
		Currency:     ord.Currency,
		TotalAmount:  ord.TotalAmount,
		Comment:      ord.Comment,
		DeletionMark: ord.DeletionMark,
		Version:      ord.Version,
		CreatedAt:    ord.CreatedAt,
		UpdatedAt:    ord.UpdatedAt,
	}

	// Status is meaningful only when lines are loaded.
	if len(ord.Lines) > 0 {
		resp.Status = string(ord.Status())
	}

	for _, line := range ord.Lines {
		lineResp := OrderLineResponse{
			LineID:        line.LineID.String(),
			LineNo:        line.LineNo,
			SKU:           line.SKU,
			Description:   line.Description,
			PromisedQty:   line.PromisedQty,
			DispatchedQty: line.DispatchedQty,
			ReceivedQty:   line.ReceivedQty,
			RejectedQty:   line.RejectedQty,
			OverrideQty:   line.OverrideQty,
			UnitPrice:     line.UnitPrice,
			Amount:        line.Amount,
			Status:        string(line.Status),
		}
		for _, lot := range line.Lots {
			lineResp.Lots = append(lineResp.Lots, OrderLotResponse{
				LotID:         lot.LotID.String(),
				LotNo:         lot.LotNo,
				PromisedQty:   lot.PromisedQty,
				DispatchedQty: lot.DispatchedQty,
				ReceivedQty:   lot.ReceivedQty,
				OverrideQty:   lot.OverrideQty,
				DueDate:       lot.DueDate,
			})
		}
		resp.Lines = append(resp.Lines, lineResp)
	}

	return resp
}

// FromOrders converts a slice for list responses (without lines).
func FromOrders(items []*orders.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(items))
	for _, ord := range items {
		resp := FromOrder(ord)
		resp.Lines = nil
		out = append(out, resp)
	}
	return out
}
