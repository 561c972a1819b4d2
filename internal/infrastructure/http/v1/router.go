// Package v1 provides HTTP API version 1.
package v1

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"procura/internal/core/id"
	"procura/internal/core/numerator"
	"procura/internal/domain"
	"procura/internal/domain/documents/dispatch"
	"procura/internal/domain/documents/receipt"
	"procura/internal/domain/invoices"
	"procura/internal/domain/orders"
	"procura/internal/domain/reconcile"
	"procura/internal/domain/reports"
	"procura/internal/infrastructure/http/v1/handlers"
	"procura/internal/infrastructure/http/v1/middleware"
	"procura/internal/infrastructure/storage/postgres"
	"procura/internal/infrastructure/storage/postgres/document_repo"
	"procura/internal/infrastructure/storage/postgres/invoice_repo"
	"procura/internal/infrastructure/storage/postgres/ledger_repo"
	"procura/internal/infrastructure/storage/postgres/report_repo"
	"procura/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the database connection pool (health checks, idempotency store)
	Pool *postgres.Pool

	// TxManager drives all repository transactions
	TxManager *postgres.TxManager

	// Logger for request logging
	Logger *logger.Logger

	// Numerator for document number generation
	Numerator numerator.Generator

	// Audit records document mutations; optional
	Audit *postgres.AuditService

	// IdempotencyEnabled enables idempotency middleware
	IdempotencyEnabled bool

	// IdempotencyTTL is how long completed keys replay
	IdempotencyTTL time.Duration
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1
	apiV1 := router.Group("/api/v1")
	{
		if cfg.IdempotencyEnabled {
			ttl := cfg.IdempotencyTTL
			if ttl == 0 {
				ttl = 10 * time.Minute
			}
			store := postgres.NewIdempotencyStore(cfg.Pool, cfg.TxManager, ttl)
			apiV1.Use(middleware.Idempotency(store))
		}

		registerRoutes(apiV1, cfg)
	}

	return router
}

// registerRoutes wires repositories, services and handlers.
func registerRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()

	// The ledger repository and the reconciliation engine are shared by every
	// document service: all quantity mutations flow through one engine.
	ledgerRepo := ledger_repo.NewLedgerRepo(cfg.TxManager)
	engine := reconcile.NewEngine(ledgerRepo)

	// --- ORDERS ---
	orderRepo := document_repo.NewOrderRepo(cfg.TxManager)
	orderService := orders.NewService(orderRepo, engine, cfg.Numerator, cfg.TxManager)
	registerAuditHooks(orderService.Hooks(), cfg.Audit, "order", func(ord *orders.Order) auditRef {
		return auditRef{ID: ord.ID, Changes: map[string]any{"number": ord.Number, "lines": len(ord.Lines)}}
	})

	orderHandler := handlers.NewOrderHandler(baseHandler, orderService)
	ordersGroup := rg.Group("/orders")
	{
		ordersGroup.GET("", orderHandler.List)
		ordersGroup.POST("", orderHandler.Create)
		ordersGroup.GET("/:id", orderHandler.Get)
		ordersGroup.PUT("/:id", orderHandler.Update)
		ordersGroup.DELETE("/:id", orderHandler.Delete)
		ordersGroup.POST("/:id/sync", orderHandler.Sync)
		ordersGroup.GET("/by-number/:number", orderHandler.GetByNumber)
		ordersGroup.PUT("/lines/:lineId/override", orderHandler.SetLineOverride)
		ordersGroup.PUT("/lots/:lotId/override", orderHandler.SetLotOverride)
	}

	// --- DISPATCH BATCHES ---
	dispatchRepo := document_repo.NewDispatchRepo(cfg.TxManager)
	dispatchService := dispatch.NewService(dispatchRepo, engine, cfg.Numerator, cfg.TxManager)
	registerAuditHooks(dispatchService.Hooks(), cfg.Audit, "dispatch_batch", func(batch *dispatch.DispatchBatch) auditRef {
		return auditRef{ID: batch.ID, Changes: map[string]any{"number": batch.Number, "order_id": batch.OrderID}}
	})

	dispatchHandler := handlers.NewDispatchHandler(baseHandler, dispatchService)
	dispatchGroup := rg.Group("/dispatches")
	{
		dispatchGroup.GET("", dispatchHandler.List)
		dispatchGroup.POST("", dispatchHandler.Create)
		dispatchGroup.GET("/:id", dispatchHandler.Get)
		dispatchGroup.PUT("/:id", dispatchHandler.Replace)
		dispatchGroup.DELETE("/:id", dispatchHandler.Delete)
	}

	// --- RECEIPTS ---
	receiptRepo := document_repo.NewReceiptRepo(cfg.TxManager)
	receiptService := receipt.NewService(receiptRepo, engine, cfg.Numerator, cfg.TxManager)
	registerAuditHooks(receiptService.Hooks(), cfg.Audit, "receipt", func(rcpt *receipt.Receipt) auditRef {
		return auditRef{ID: rcpt.ID, Changes: map[string]any{"number": rcpt.Number, "order_id": rcpt.OrderID}}
	})

	receiptHandler := handlers.NewReceiptHandler(baseHandler, receiptService)
	receiptGroup := rg.Group("/receipts")
	{
		receiptGroup.GET("", receiptHandler.List)
		receiptGroup.POST("", receiptHandler.Create)
		receiptGroup.GET("/:id", receiptHandler.Get)
		receiptGroup.DELETE("/:id", receiptHandler.Delete)
	}

	// --- INVOICE SIGNALS ---
	invoiceRepo := invoice_repo.NewInvoiceRepo(cfg.TxManager)
	invoiceService := invoices.NewService(invoiceRepo, engine, cfg.TxManager)

	invoiceHandler := handlers.NewInvoiceHandler(baseHandler, invoiceService, invoiceRepo)
	invoiceGroup := rg.Group("/invoices")
	{
		invoiceGroup.POST("", invoiceHandler.Record)
		invoiceGroup.DELETE("/:number", invoiceHandler.Withdraw)
		invoiceGroup.GET("/by-line/:lineId", invoiceHandler.ListByOrderLine)
	}

	// --- REPORTS ---
	reportRepo := report_repo.NewReportRepo(cfg.TxManager)
	reportService := reports.NewService(reportRepo)
	reportHandler := handlers.NewReportsHandler(baseHandler, reportService)

	reportsGroup := rg.Group("/reports")
	{
		reportsGroup.GET("/fulfillment", reportHandler.GetFulfillment)
	}
}

// auditRef is the minimal audit payload extracted from a document.
type auditRef struct {
	ID      id.ID
	Changes map[string]any
}

// registerAuditHooks attaches create/update/delete audit logging to a document
// service. No-op when audit is disabled.
func registerAuditHooks[T any](
	hooks *domain.HookRegistry[T],
	audit *postgres.AuditService,
	entityType string,
	extract func(T) auditRef,
) {
	if audit == nil {
		return
	}

	log := func(action postgres.AuditAction) domain.Hook[T] {
		return func(ctx context.Context, doc T) error {
			ref := extract(doc)
			if err := audit.LogChange(ctx, entityType, ref.ID, action, ref.Changes); err != nil {
				logger.Warn(ctx, "audit log failed",
					"entity_type", entityType,
					"action", action,
					"error", err,
				)
			}
			return nil
		}
	}

	hooks.On(domain.AfterCreate, log(postgres.AuditActionCreate))
	hooks.On(domain.AfterUpdate, log(postgres.AuditActionUpdate))
	hooks.On(domain.AfterDelete, log(postgres.AuditActionDelete))
}
