package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"invoice-reconciliation-backend/internal/services/tenants"
)

type TenantHandler struct {
	service *tenants.Service
}

func NewTenantHandler(service *tenants.Service) *TenantHandler {
	return &TenantHandler{service: service}
}

func (h *TenantHandler) Create(c *gin.Context) {
	var payload struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	tenant, err := h.service.Create(c.Request.Context(), payload.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tenant)
}

func (h *TenantHandler) List(c *gin.Context) {
	limit, offset := pagination(c)
	result, err := h.service.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenants": result, "total": len(result)})
}

func (h *TenantHandler) Get(c *gin.Context) {
	id, ok := tenantID(c)
	if !ok {
		return
	}
	tenant, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}

func (h *TenantHandler) CreateVendor(c *gin.Context) {
	id, ok := tenantID(c)
	if !ok {
		return
	}

	var payload struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	vendor, err := h.service.CreateVendor(c.Request.Context(), id, payload.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, vendor)
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
