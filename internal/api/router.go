package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sdms/payment-gateway/internal/gateway"
	"github.com/sdms/payment-gateway/internal/handlers"
	"github.com/sdms/payment-gateway/internal/middleware"
	"github.com/sdms/payment-gateway/internal/portal"
	"github.com/sdms/payment-gateway/internal/service"
	"github.com/sdms/payment-gateway/internal/telemetry"
)

// Services are the dependencies of the merchant API.
type Services struct {
	Invoices  *service.InvoiceService
	Builder   *service.PaymentRequestBuilder
	IPN       *service.IPNVerifier
	Confirmer *service.ReturnConfirmer
	Returns   *portal.ReturnFlow
	JWTSecret string
}

func NewRouter(s Services) *gin.Engine {
	r := newEngine("payment-api")

	auth := middleware.Authenticate(s.JWTSecret)
	admin := middleware.RequireRole(middleware.RoleAdmin)
	student := middleware.RequireRole(middleware.RoleStudent)
	anyone := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleStudent)

	paymentHandler := handlers.NewPaymentHandler(s.Builder, s.IPN, s.Confirmer)
	invoiceHandler := handlers.NewInvoiceHandler(s.Invoices)
	returnHandler := handlers.NewReturnHandler(s.Returns, s.Invoices)

	v1 := r.Group("/api/v1")

	// Called by the bank and by the browser return; both are authenticated
	// by signature, not by session.
	v1.POST("/payment/ipn", paymentHandler.IPN)
	v1.GET("/payment/payment_return", paymentHandler.PaymentReturn)
	v1.POST("/payment/create_url", auth, student, paymentHandler.CreatePaymentURL)

	finance := v1.Group("/finance", auth)
	finance.POST("/invoices", admin, invoiceHandler.Create)
	finance.GET("/invoices", anyone, invoiceHandler.List)
	finance.GET("/invoices/:id", anyone, invoiceHandler.Get)
	finance.PUT("/invoices/:id/cancel", admin, invoiceHandler.Cancel)
	finance.POST("/invoices/:id/payments", admin, invoiceHandler.RecordPayment)
	finance.GET("/stats", admin, invoiceHandler.Stats)

	r.GET("/student/finance/payment-return", auth, student, returnHandler.Landing)

	return r
}

// NewGatewayRouter serves the simulated bank checkout.
func NewGatewayRouter(sim *gateway.Simulator) *gin.Engine {
	r := newEngine("bank-simulator")

	h := handlers.NewGatewayHandler(sim)
	r.GET("/payment-gateway", h.Open)
	g := r.Group("/gateway/sessions")
	g.POST("", h.Open)
	g.GET("/:id", h.Get)
	g.POST("/:id/card", h.SubmitCard)
	g.POST("/:id/otp", h.SubmitOtp)
	g.POST("/:id/retry", h.Retry)

	return r
}

func newEngine(name string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": name})
	})
	return r
}
