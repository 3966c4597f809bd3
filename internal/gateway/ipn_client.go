package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sdms/payment-gateway/internal/models"
)

// IPNSender delivers a callback to the merchant. A nil error means the
// merchant acknowledged it with RspCode "00".
type IPNSender interface {
	Send(ctx context.Context, cb models.PaymentCallback) error
}

// RejectedError is returned when the merchant answers with a non-"00" code.
type RejectedError struct {
	RspCode string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("ipn rejected: %s %s", e.RspCode, e.Message)
}

type IPNClient struct {
	client *resty.Client
	url    string
}

func NewIPNClient(ipnURL string, timeout time.Duration) *IPNClient {
	client := resty.New().
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &IPNClient{client: client, url: ipnURL}
}

func (c *IPNClient) Send(ctx context.Context, cb models.PaymentCallback) error {
	var ack models.IPNResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(cb).
		SetResult(&ack).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("ipn request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("ipn request failed: status %d", resp.StatusCode())
	}
	if ack.RspCode != models.ResponseCodeSuccess {
		return &RejectedError{RspCode: ack.RspCode, Message: ack.Message}
	}
	return nil
}
