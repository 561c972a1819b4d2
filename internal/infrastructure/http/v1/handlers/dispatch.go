package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/domain"
	"procura/internal/domain/documents/dispatch"
	"procura/internal/infrastructure/http/v1/dto"
)

// DispatchHandler handles HTTP requests for dispatch batches.
type DispatchHandler struct {
	*BaseHandler
	service *dispatch.Service
}

// NewDispatchHandler creates a new dispatch handler.
func NewDispatchHandler(base *BaseHandler, service *dispatch.Service) *DispatchHandler {
	return &DispatchHandler{BaseHandler: base, service: service}
}

// Create handles POST /dispatches - create a dispatch batch.
// Admission control runs per line; any over-capacity line fails the whole batch.
func (h *DispatchHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	var req dto.CreateDispatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	batch := req.ToEntity()
	if err := h.service.Create(ctx, batch); err != nil {
		h.Error(c, err)
		return
	}

	response := dto.FromDispatch(batch)
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", response)
	c.JSON(http.StatusCreated, response)
}

// Get handles GET /dispatches/:id.
func (h *DispatchHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	batchID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	batch, err := h.service.GetByID(ctx, batchID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDispatch(batch))
}

// Replace handles PUT /dispatches/:id - replace the batch's records.
// The old records are reversed out of the ledger before the new ones are
// admitted, all in one transaction.
func (h *DispatchHandler) Replace(c *gin.Context) {
	ctx := c.Request.Context()
	batchID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.CreateDispatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	replacement := req.ToEntity()
	if err := h.service.Replace(ctx, batchID, replacement); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDispatch(replacement))
}

// Delete handles DELETE /dispatches/:id.
// Fails with a conflict when receipts reference the batch.
func (h *DispatchHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	batchID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Delete(ctx, batchID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// List handles GET /dispatches - list with filtering.
func (h *DispatchHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := dispatch.ListFilter{
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
		Items:      dto.FromDispatches(result.Items),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}
