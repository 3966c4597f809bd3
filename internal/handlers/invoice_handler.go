package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sdms/payment-gateway/internal/middleware"
	"github.com/sdms/payment-gateway/internal/models"
	"github.com/sdms/payment-gateway/internal/service"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type InvoiceHandler struct {
	invoices *service.InvoiceService
}

func NewInvoiceHandler(invoices *service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

func (h *InvoiceHandler) Create(c *gin.Context) {
	var input models.CreateInvoiceInput
	if !bindAndValidate(c, &input) {
		return
	}

	inv, err := h.invoices.Create(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

// List returns invoices; students only ever see their own.
func (h *InvoiceHandler) List(c *gin.Context) {
	filter := models.InvoiceFilter{Status: models.InvoiceStatus(c.Query("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	page := queryInt(c, "page", 1)
	size := queryInt(c, "size", defaultPageSize)
	if page < 1 {
		page = 1
	}
	if size < 1 || size > maxPageSize {
		size = defaultPageSize
	}
	filter.Limit = size
	filter.Offset = (page - 1) * size
	filter.StudentID = studentScope(c)

	invoices, err := h.invoices.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": invoices, "page": page, "size": size})
}

func (h *InvoiceHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": models.ErrInvoiceNotFound.Error()})
		return
	}

	inv, err := h.invoices.Get(c.Request.Context(), id, studentScope(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": models.ErrInvoiceNotFound.Error()})
		return
	}

	inv, err := h.invoices.Cancel(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// RecordPayment records a cash or bank-transfer payment taken by staff.
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": models.ErrInvoiceNotFound.Error()})
		return
	}
	var input models.RecordPaymentInput
	if !bindAndValidate(c, &input) {
		return
	}

	inv, recorded, err := h.invoices.RecordPayment(c.Request.Context(), id, input)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusCreated
	if !recorded {
		status = http.StatusOK
	}
	c.JSON(status, inv)
}

func (h *InvoiceHandler) Stats(c *gin.Context) {
	stats, err := h.invoices.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// studentScope returns the caller's id when the caller is a student.
func studentScope(c *gin.Context) *uuid.UUID {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok || p.Role != middleware.RoleStudent {
		return nil
	}
	return &p.UserID
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return v
}
