package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/domain"
	"procura/internal/domain/documents/receipt"
	"procura/internal/infrastructure/http/v1/dto"
)

// ReceiptHandler handles HTTP requests for receipts.
type ReceiptHandler struct {
	*BaseHandler
	service *receipt.Service
}

// NewReceiptHandler creates a new receipt handler.
func NewReceiptHandler(base *BaseHandler, service *receipt.Service) *ReceiptHandler {
	return &ReceiptHandler{BaseHandler: base, service: service}
}

// Create handles POST /receipts - ingest a receipt.
func (h *ReceiptHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	var req dto.CreateReceiptRequest
	if !h.BindJSON(c, &req) {
		return
	}

	rcpt := req.ToEntity()
	if err := h.service.Ingest(ctx, rcpt); err != nil {
		h.Error(c, err)
		return
	}

	response := dto.FromReceipt(rcpt)
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", response)
	c.JSON(http.StatusCreated, response)
}

// Get handles GET /receipts/:id.
func (h *ReceiptHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	receiptID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	rcpt, err := h.service.GetByID(ctx, receiptID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromReceipt(rcpt))
}

// Delete handles DELETE /receipts/:id.
// The ledger is recalculated as if the receipt never existed, then the rows go.
func (h *ReceiptHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	receiptID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Delete(ctx, receiptID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// List handles GET /receipts - list with filtering.
func (h *ReceiptHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := receipt.ListFilter{
		ListFilter: domain.DefaultListFilter(),
	}
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.DefaultQuery("orderBy", "-date")

	if orderID := c.Query("orderId"); orderID != "" {
		parsed, err := id.Parse(orderID)
		if err == nil {
			filter.OrderID = &parsed
		}
	}
	if batchID := c.Query("dispatchBatchId"); batchID != "" {
		parsed, err := id.Parse(batchID)
		if err == nil {
			filter.DispatchBatchID = &parsed
		}
	}
	if dateFrom := c.Query("dateFrom"); dateFrom != "" {
		if parsed, err := time.Parse(time.RFC3339, dateFrom); err == nil {
			filter.DateFrom = &parsed
		}
	}
	if dateTo := c.Query("dateTo"); dateTo != "" {
		if parsed, err := time.Parse(time.RFC3339, dateTo); err == nil {
			filter.DateTo = &parsed
		}
	}

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{
		Items:      dto.FromReceipts(result.Items),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}
