package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/config"
	"invoice-reconciliation-backend/internal/handlers"
	"invoice-reconciliation-backend/internal/repository"
	"invoice-reconciliation-backend/internal/services/explanation"
	"invoice-reconciliation-backend/internal/services/importer"
	"invoice-reconciliation-backend/internal/services/invoices"
	"invoice-reconciliation-backend/internal/services/matches"
	"invoice-reconciliation-backend/internal/services/reconciliation"
	"invoice-reconciliation-backend/internal/services/tenants"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg *config.Config, logger *zap.Logger) {
	tenantRepo := repository.NewTenantRepository(db)
	vendorRepo := repository.NewVendorRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	txRepo := repository.NewBankTransactionRepository(db)
	matchRepo := repository.NewMatchRepository(db)
	idemRepo := repository.NewIdempotencyRepository(db)

	tenantService := tenants.NewService(tenantRepo, vendorRepo)
	invoiceService := invoices.NewService(tenantRepo, vendorRepo, invoiceRepo, logger)
	importService := importer.NewService(db, tenantRepo, txRepo, idemRepo, logger)
	reconService := reconciliation.NewService(db, tenantRepo, invoiceRepo, txRepo, vendorRepo, matchRepo, logger)
	matchService := matches.NewService(db, tenantRepo, matchRepo, invoiceRepo, logger)
	explService := explanation.NewService(cfg.AI, logger)

	tenantHandler := handlers.NewTenantHandler(tenantService)
	invoiceHandler := handlers.NewInvoiceHandler(invoiceService)
	txHandler := handlers.NewBankTransactionHandler(importService, txRepo, logger)
	reconHandler := handlers.NewReconciliationHandler(reconService, explService, invoiceRepo, txRepo, vendorRepo)
	matchHandler := handlers.NewMatchHandler(matchService)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api.POST("/tenants", tenantHandler.Create)
	api.GET("/tenants", tenantHandler.List)

	tenant := api.Group("/tenants/:tenantId")
	{
		tenant.GET("", tenantHandler.Get)
		tenant.POST("/vendors", tenantHandler.CreateVendor)

		tenant.POST("/invoices", invoiceHandler.Create)
		tenant.GET("/invoices", invoiceHandler.List)
		tenant.GET("/invoices/:id", invoiceHandler.Get)
		tenant.DELETE("/invoices/:id", invoiceHandler.Delete)

		tenant.POST("/bank-transactions/import", txHandler.Import)
		tenant.POST("/bank-transactions/import-csv", txHandler.ImportCSV)
		tenant.GET("/bank-transactions", txHandler.List)
		tenant.DELETE("/bank-transactions/:id", txHandler.Delete)

		tenant.POST("/reconcile", reconHandler.Reconcile)
		tenant.GET("/reconcile/candidates", reconHandler.ListCandidates)
		tenant.GET("/reconcile/explain", reconHandler.Explain)

		tenant.GET("/matches/:id", matchHandler.Get)
		tenant.POST("/matches/:id/confirm", matchHandler.Confirm)
		tenant.POST("/matches/:id/reject", matchHandler.Reject)
	}
}
