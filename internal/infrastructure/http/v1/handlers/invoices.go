package handlers

import (
	"github.com/gin-gonic/gin"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/domain/invoices"
	"procura/internal/infrastructure/http/v1/dto"
)

// InvoiceHandler handles HTTP requests for invoice signals.
type InvoiceHandler struct {
	*BaseHandler
	service *invoices.Service
	repo    invoices.Repository
}

// NewInvoiceHandler creates a new invoice signal handler.
func NewInvoiceHandler(base *BaseHandler, service *invoices.Service, repo invoices.Repository) *InvoiceHandler {
	return &InvoiceHandler{BaseHandler: base, service: service, repo: repo}
}

// Record handles POST /invoices - record the line signals of one invoice.
func (h *InvoiceHandler) Record(c *gin.Context) {
	ctx := c.Request.Context()
	var req dto.RecordInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	signals := req.ToEntities()
	if err := h.service.Record(ctx, signals); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "invoice signals recorded")
}

// Withdraw handles DELETE /invoices/:number.
func (h *InvoiceHandler) Withdraw(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.service.Withdraw(ctx, c.Param("number")); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// ListByOrderLine handles GET /invoices/by-line/:lineId.
func (h *InvoiceHandler) ListByOrderLine(c *gin.Context) {
	ctx := c.Request.Context()
	lineID, err := id.Parse(c.Param("lineId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	signals, err := h.repo.ListByOrderLine(ctx, lineID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromSignals(signals))
}
