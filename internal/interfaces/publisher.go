package interfaces

import (
	"context"

	"github.com/sdms/payment-gateway/internal/models"
)

type EventPublisher interface {
	PublishInvoicePaid(ctx context.Context, event models.InvoicePaidEvent) error
}
