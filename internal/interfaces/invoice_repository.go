package interfaces

import (
	"context"

	"github.com/google/uuid"

	"github.com/sdms/payment-gateway/internal/models"
)

// InvoiceRepository defines the contract for invoice and payment data access
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, error)
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]models.Payment, error)

	// MarkPaid moves an UNPAID or OVERDUE invoice to PAID and records the
	// payment in one transaction. It returns models.ErrInvalidInvoiceState when
	// the invoice was not in a payable status at update time.
	MarkPaid(ctx context.Context, id uuid.UUID, proof models.PaymentProof) (*models.Invoice, error)

	// RecordPayment adds a manual payment if the outstanding balance is still
	// expectedRemaining. Duplicate transaction numbers return
	// models.ErrDuplicateTransaction.
	RecordPayment(ctx context.Context, id uuid.UUID, proof models.PaymentProof, expectedRemaining int64) (*models.Invoice, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	Stats(ctx context.Context) (models.InvoiceStats, error)
}
