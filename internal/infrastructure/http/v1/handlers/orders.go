package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain"
	"procura/internal/domain/orders"
	"procura/internal/infrastructure/http/v1/dto"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	*BaseHandler
	service *orders.Service
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(base *BaseHandler, service *orders.Service) *OrderHandler {
	return &OrderHandler{BaseHandler: base, service: service}
}

// Create handles POST /orders - ingest a new order.
func (h *OrderHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	var req dto.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ord, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := h.service.Ingest(ctx, ord); err != nil {
		h.Error(c, err)
		return
	}

	response := dto.FromOrder(ord)
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", response)
	c.JSON(http.StatusCreated, response)
}

// Get handles GET /orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	orderID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	ord, err := h.service.GetByID(ctx, orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromOrder(ord))
}

// GetByNumber handles GET /orders/by-number/:number.
func (h *OrderHandler) GetByNumber(c *gin.Context) {
	ctx := c.Request.Context()

	ord, err := h.service.GetByNumber(ctx, c.Param("number"))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromOrder(ord))
}

// Update handles PUT /orders/:id - amend an order.
func (h *OrderHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	orderID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.AmendOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ord, err := h.service.GetByID(ctx, orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := req.ApplyTo(ord); err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Amend(ctx, ord); err != nil {
		h.Error(c, err)
		return
	}

	// Re-read so the response carries recalculated quantities.
	ord, err = h.service.GetByID(ctx, orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromOrder(ord))
}

// Delete handles DELETE /orders/:id.
func (h *OrderHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	orderID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Delete(ctx, orderID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// List handles GET /orders - list with filtering.
func (h *OrderHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := orders.ListFilter{
		ListFilter: domain.DefaultListFilter(),
	}
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.DefaultQuery("orderBy", "-date")
	filter.IncludeDeleted = c.Query("includeDeleted") == "true"

	if supplierID := c.Query("supplierId"); supplierID != "" {
		parsed, err := id.Parse(supplierID)
		if err == nil {
			filter.SupplierID = &parsed
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
		Items:      dto.FromOrders(result.Items),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// SetLineOverride handles PUT /orders/lines/:lineId/override.
func (h *OrderHandler) SetLineOverride(c *gin.Context) {
	ctx := c.Request.Context()
	lineID, err := id.Parse(c.Param("lineId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.OverrideRequest
	if !h.BindJSON(c, &req) {
		return
	}

	var override *types.Quantity
	if req.Quantity != nil {
		q := types.NewQuantityFromFloat64(*req.Quantity)
		override = &q
	}

	if err := h.service.SetLineOverride(ctx, lineID, override); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "override updated")
}

// SetLotOverride handles PUT /orders/lots/:lotId/override.
func (h *OrderHandler) SetLotOverride(c *gin.Context) {
	ctx := c.Request.Context()
	lotID, err := id.Parse(c.Param("lotId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.OverrideRequest
	if !h.BindJSON(c, &req) {
		return
	}

	var override *types.Quantity
	if req.Quantity != nil {
		q := types.NewQuantityFromFloat64(*req.Quantity)
		override = &q
	}

	if err := h.service.SetLotOverride(ctx, lotID, override); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "override updated")
}

// Sync handles POST /orders/:id/sync - bulk self-heal.
func (h *OrderHandler) Sync(c *gin.Context) {
	ctx := c.Request.Context()
	orderID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Sync(ctx, orderID); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "order synchronized")
}
