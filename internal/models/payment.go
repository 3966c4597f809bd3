package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Wire names of the payment parameters. They are shared by the outbound
// gateway URL, the IPN body and the return redirect.
const (
	FieldOrderID       = "orderId"
	FieldAmount        = "amount"
	FieldOrderDesc     = "orderDesc"
	FieldCreateDate    = "createDate"
	FieldIPAddr        = "ipAddr"
	FieldBillingName   = "billingName"
	FieldStudentInfo   = "studentInfo"
	FieldSignature     = "signature"
	FieldResponseCode  = "responseCode"
	FieldTransactionNo = "vnp_TransactionNo"
	FieldPayment       = "payment"
)

// CreateDateLayout is the fixed-width YYYYMMDDHHmmss timestamp.
const CreateDateLayout = "20060102150405"

const (
	ResponseCodeSuccess = "00"
	PaymentMarkSuccess  = "success"
)

// PaymentRequest is the signed parameter bag handed to the bank page.
type PaymentRequest struct {
	OrderID     string `json:"orderId"`
	Amount      int64  `json:"amount"`
	OrderDesc   string `json:"orderDesc"`
	CreateDate  string `json:"createDate"`
	IPAddr      string `json:"ipAddr"`
	BillingName string `json:"billingName"`
	StudentInfo string `json:"studentInfo,omitempty"`
	Signature   string `json:"signature"`
}

// Params returns the signable fields keyed by their wire names.
func (r PaymentRequest) Params() map[string]string {
	p := map[string]string{
		FieldOrderID:     r.OrderID,
		FieldAmount:      FormatAmount(r.Amount),
		FieldOrderDesc:   r.OrderDesc,
		FieldCreateDate:  r.CreateDate,
		FieldIPAddr:      r.IPAddr,
		FieldBillingName: r.BillingName,
	}
	if r.StudentInfo != "" {
		p[FieldStudentInfo] = r.StudentInfo
	}
	return p
}

// PaymentCallback is what the bank posts to the IPN endpoint. Amount stays a
// string so verification sees exactly what was signed.
type PaymentCallback struct {
	OrderID       string `json:"orderId"`
	Amount        string `json:"amount"`
	OrderDesc     string `json:"orderDesc"`
	CreateDate    string `json:"createDate"`
	IPAddr        string `json:"ipAddr"`
	BillingName   string `json:"billingName"`
	StudentInfo   string `json:"studentInfo,omitempty"`
	Signature     string `json:"signature"`
	ResponseCode  string `json:"responseCode"`
	TransactionNo string `json:"transactionNo"`
}

// Params returns the signable fields present on the callback. Empty fields
// are left out so that a stripped field fails verification.
func (c PaymentCallback) Params() map[string]string {
	p := make(map[string]string, 7)
	set := func(k, v string) {
		if v != "" {
			p[k] = v
		}
	}
	set(FieldOrderID, c.OrderID)
	set(FieldAmount, c.Amount)
	set(FieldOrderDesc, c.OrderDesc)
	set(FieldCreateDate, c.CreateDate)
	set(FieldIPAddr, c.IPAddr)
	set(FieldBillingName, c.BillingName)
	set(FieldStudentInfo, c.StudentInfo)
	return p
}

// CallbackFromParams builds a callback out of a flat parameter bag such as a
// return-redirect query string.
func CallbackFromParams(p map[string]string) PaymentCallback {
	return PaymentCallback{
		OrderID:       p[FieldOrderID],
		Amount:        p[FieldAmount],
		OrderDesc:     p[FieldOrderDesc],
		CreateDate:    p[FieldCreateDate],
		IPAddr:        p[FieldIPAddr],
		BillingName:   p[FieldBillingName],
		StudentInfo:   p[FieldStudentInfo],
		Signature:     p[FieldSignature],
		ResponseCode:  p[FieldResponseCode],
		TransactionNo: p[FieldTransactionNo],
	}
}

// IPNResponse is the merchant acknowledgement returned to the bank.
type IPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// VerifyResponse is returned by the payment_return endpoint.
type VerifyResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
}

const (
	VerifyStatusSuccess = "success"
	VerifyStatusFailed  = "failed"
)

// FormatAmount renders an amount the way it is signed.
func FormatAmount(amount int64) string {
	return decimal.NewFromInt(amount).String()
}

// ParseAmount accepts a positive whole number of đồng.
func ParseAmount(raw string) (int64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if !d.IsInteger() || !d.IsPositive() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return d.IntPart(), nil
}
