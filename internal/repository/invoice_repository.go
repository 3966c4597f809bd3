package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sdms/payment-gateway/internal/models"
)

const uniqueViolation = "23505"

const invoiceColumns = `id, student_id, title, total_amount, paid_amount, remaining_amount,
	status, billing_name, student_info, due_date, created_at, updated_at`

type InvoiceRepository struct {
	db *sql.DB
}

func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS invoices (
			id UUID PRIMARY KEY,
			student_id UUID NOT NULL,
			title VARCHAR(255) NOT NULL,
			total_amount BIGINT NOT NULL,
			paid_amount BIGINT NOT NULL DEFAULT 0,
			remaining_amount BIGINT NOT NULL,
			status VARCHAR(20) NOT NULL,
			billing_name VARCHAR(255) NOT NULL,
			student_info VARCHAR(255) NOT NULL DEFAULT '',
			due_date TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_student ON invoices(student_id)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(status)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id UUID PRIMARY KEY,
			invoice_id UUID NOT NULL REFERENCES invoices(id),
			amount BIGINT NOT NULL,
			payment_method VARCHAR(20) NOT NULL,
			transaction_no VARCHAR(64),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_transaction_no
			ON payments(transaction_no) WHERE transaction_no IS NOT NULL`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *models.Invoice) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO invoices (id, student_id, title, total_amount, paid_amount, remaining_amount,
			status, billing_name, student_info, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, inv.ID, inv.StudentID, inv.Title, inv.TotalAmount, inv.PaidAmount, inv.RemainingAmount,
		inv.Status, inv.BillingName, inv.StudentInfo, nullTime(inv.DueDate),
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	return err
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *InvoiceRepository) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, error) {
	var (
		where []string
		args  []any
	)
	if filter.StudentID != nil {
		args = append(args, *filter.StudentID)
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := []models.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

func (r *InvoiceRepository) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]models.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, invoice_id, amount, payment_method, COALESCE(transaction_no, ''), created_at
		FROM payments WHERE invoice_id = $1 ORDER BY created_at
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []models.Payment{}
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.TransactionNo, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// MarkPaid is a check-and-set on the invoice status and outstanding amount.
// The payment row is written in the same transaction, so either both land or
// neither does.
func (r *InvoiceRepository) MarkPaid(ctx context.Context, id uuid.UUID, proof models.PaymentProof) (*models.Invoice, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE invoices
		SET status = $1, paid_amount = paid_amount + $2, remaining_amount = 0, updated_at = NOW()
		WHERE id = $3 AND status IN ($4, $5) AND remaining_amount = $2
	`, models.InvoicePaid, proof.Amount, id, models.InvoiceUnpaid, models.InvoiceOverdue)
	if err != nil {
		return nil, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, models.ErrInvalidInvoiceState
	}

	if err := insertPayment(ctx, tx, id, proof); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// RecordPayment applies a manual payment against the outstanding balance the
// caller last read. The invoice becomes PAID when the balance reaches zero and
// PARTIAL otherwise. A changed balance or status returns
// models.ErrInvalidInvoiceState and writes nothing.
func (r *InvoiceRepository) RecordPayment(ctx context.Context, id uuid.UUID, proof models.PaymentProof, expectedRemaining int64) (*models.Invoice, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE invoices
		SET paid_amount = paid_amount + $1,
			remaining_amount = remaining_amount - $1,
			status = CASE WHEN remaining_amount = $1 THEN $2 ELSE $3 END,
			updated_at = NOW()
		WHERE id = $4 AND remaining_amount = $5 AND remaining_amount >= $1
			AND status IN ($6, $7, $8)
	`, proof.Amount, models.InvoicePaid, models.InvoicePartial, id, expectedRemaining,
		models.InvoiceUnpaid, models.InvoiceOverdue, models.InvoicePartial)
	if err != nil {
		return nil, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, models.ErrInvalidInvoiceState
	}

	if err := insertPayment(ctx, tx, id, proof); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

func insertPayment(ctx context.Context, tx *sql.Tx, invoiceID uuid.UUID, proof models.PaymentProof) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payments (id, invoice_id, amount, payment_method, transaction_no)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New(), invoiceID, proof.Amount, proof.Method, nullString(proof.TransactionNo))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.ErrDuplicateTransaction
		}
		return err
	}
	return nil
}

func (r *InvoiceRepository) Cancel(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE invoices SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ($3, $4, $5)
	`, models.InvoiceCancelled, id, models.InvoiceUnpaid, models.InvoiceOverdue, models.InvoicePartial)
	if err != nil {
		return nil, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	inv, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, models.ErrInvalidInvoiceState
	}
	return inv, nil
}

func (r *InvoiceRepository) Stats(ctx context.Context) (models.InvoiceStats, error) {
	var s models.InvoiceStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status IN ($1, $2) THEN paid_amount ELSE 0 END), 0),
			COUNT(*) FILTER (WHERE status = $3),
			COUNT(*) FILTER (WHERE status = $4)
		FROM invoices
	`, models.InvoicePaid, models.InvoicePartial, models.InvoiceOverdue, models.InvoiceUnpaid,
	).Scan(&s.TotalRevenue, &s.OverdueInvoices, &s.PendingInvoices)
	return s, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	var (
		inv     models.Invoice
		dueDate sql.NullTime
	)
	err := row.Scan(&inv.ID, &inv.StudentID, &inv.Title, &inv.TotalAmount, &inv.PaidAmount,
		&inv.RemainingAmount, &inv.Status, &inv.BillingName, &inv.StudentInfo, &dueDate,
		&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if dueDate.Valid {
		inv.DueDate = &dueDate.Time
	}
	return &inv, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
