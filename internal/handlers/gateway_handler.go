package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sdms/payment-gateway/internal/gateway"
	"github.com/sdms/payment-gateway/internal/signature"
)

type GatewayHandler struct {
	sim *gateway.Simulator
}

func NewGatewayHandler(sim *gateway.Simulator) *GatewayHandler {
	return &GatewayHandler{sim: sim}
}

type cardInput struct {
	Number string `json:"cardNumber" validate:"required"`
	Holder string `json:"cardHolder" validate:"required"`
}

type otpInput struct {
	Otp string `json:"otp" validate:"required,len=6,numeric"`
}

// Open starts a checkout from the signed parameters in the query string or
// a form body.
func (h *GatewayHandler) Open(c *gin.Context) {
	values := c.Request.URL.Query()
	if err := c.Request.ParseForm(); err == nil {
		for k, v := range c.Request.PostForm {
			values[k] = v
		}
	}

	sess, err := h.sim.Open(signature.ParamsFromValues(values))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gateway.ErrInvalidPaymentRequest.Error()})
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *GatewayHandler) Get(c *gin.Context) {
	sess, err := h.sim.Get(c.Param("id"))
	if err != nil {
		writeGatewayError(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *GatewayHandler) SubmitCard(c *gin.Context) {
	var input cardInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sess, err := h.sim.SubmitCard(c.Request.Context(), c.Param("id"), input.Number, input.Holder)
	if err != nil {
		writeGatewayError(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *GatewayHandler) SubmitOtp(c *gin.Context) {
	var input otpInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := validate.Struct(input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gateway.ErrOtpMismatch.Error()})
		return
	}

	sess, err := h.sim.SubmitOtp(c.Request.Context(), c.Param("id"), input.Otp)
	if err != nil {
		writeGatewayError(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *GatewayHandler) Retry(c *gin.Context) {
	sess, err := h.sim.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeGatewayError(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func writeGatewayError(c *gin.Context, sess gateway.Session, err error) {
	switch {
	case errors.Is(err, gateway.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, gateway.ErrCardDetailsRequired), errors.Is(err, gateway.ErrOtpMismatch):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "session": sess})
	case errors.Is(err, gateway.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "session": sess})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
