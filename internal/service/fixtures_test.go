package service

import (
	"testing"

	"github.com/google/uuid"

	"github.com/sdms/payment-gateway/internal/models"
	"github.com/sdms/payment-gateway/internal/signature"
)

const testSecret = "dorm-secret"

var testStudent = uuid.MustParse("6f1c1e1a-8a55-4b53-9a57-0f1d2b1f7c11")

func unpaidInvoice(amount int64) *models.Invoice {
	return &models.Invoice{
		ID:              uuid.New(),
		StudentID:       testStudent,
		Title:           "Tiền phòng tháng 10",
		TotalAmount:     amount,
		RemainingAmount: amount,
		Status:          models.InvoiceUnpaid,
		BillingName:     "Nguyễn Văn A",
		StudentInfo:     "Tòa A1 - P101",
	}
}

func mustCodec(t *testing.T, secret string) *signature.Codec {
	t.Helper()
	c, err := signature.NewCodec(secret)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return c
}

// signedCallback builds a successful callback for inv signed with codec.
func signedCallback(t *testing.T, codec *signature.Codec, inv *models.Invoice) models.PaymentCallback {
	t.Helper()
	req := models.PaymentRequest{
		OrderID:     inv.ID.String(),
		Amount:      inv.RemainingAmount,
		OrderDesc:   "THANH TOAN HOA DON TEST",
		CreateDate:  "20251016093000",
		IPAddr:      "10.0.0.8",
		BillingName: inv.BillingName,
		StudentInfo: inv.StudentInfo,
	}
	sig, err := codec.Sign(req.Params())
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	return models.PaymentCallback{
		OrderID:       req.OrderID,
		Amount:        models.FormatAmount(req.Amount),
		OrderDesc:     req.OrderDesc,
		CreateDate:    req.CreateDate,
		IPAddr:        req.IPAddr,
		BillingName:   req.BillingName,
		StudentInfo:   req.StudentInfo,
		Signature:     sig,
		ResponseCode:  models.ResponseCodeSuccess,
		TransactionNo: "12345678",
	}
}
