package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"procura/internal/core/id"
	"procura/internal/domain/reconcile"
	"procura/internal/domain/reports"
	"procura/internal/infrastructure/http/v1/dto"
)

// ReportsHandler handles HTTP requests for reports.
type ReportsHandler struct {
	*BaseHandler
	service *reports.Service
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *BaseHandler, service *reports.Service) *ReportsHandler {
	return &ReportsHandler{BaseHandler: base, service: service}
}

// GetFulfillment handles GET /reports/fulfillment.
func (h *ReportsHandler) GetFulfillment(c *gin.Context) {
	ctx := c.Request.Context()

	filter := reports.FulfillmentFilter{
		Limit:  h.ParseIntQuery(c, "limit", 100),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	if supplierID := c.Query("supplierId"); supplierID != "" {
		parsed, err := id.Parse(supplierID)
		if err == nil {
			filter.SupplierID = &parsed
		}
	}
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
	if status := c.Query("status"); status != "" {
		parsed := reconcile.Status(status)
		filter.Status = &parsed
	}

	report, err := h.service.GetFulfillment(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromFulfillmentReport(report))
}
