package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/sdms/payment-gateway/internal/models"
	"github.com/sdms/payment-gateway/internal/signature"
	"github.com/sdms/payment-gateway/internal/telemetry"
)

var (
	ErrNotAPaymentReturn  = errors.New("not a payment return")
	ErrVerificationFailed = errors.New("payment verification failed")
)

// MsgInvalidSignature is shown to the student; it does not say which field
// failed.
const MsgInvalidSignature = "Chữ ký không hợp lệ"

// Verifier asks the backend to confirm a return.
type Verifier interface {
	Verify(ctx context.Context, params map[string]string) (models.VerifyResponse, error)
}

// Result describes a confirmed payment.
type Result struct {
	OrderID       string `json:"orderId"`
	TransactionNo string `json:"transactionNo"`
	Message       string `json:"message"`
}

// ReturnFlow handles the browser landing after the bank redirect. Subscribers
// are notified after a confirmed payment so they can reload invoice data.
type ReturnFlow struct {
	codec    *signature.Codec
	verifier Verifier

	mu     sync.Mutex
	nextID int
	subs   map[int]func(Result)
}

func NewReturnFlow(codec *signature.Codec, verifier Verifier) *ReturnFlow {
	return &ReturnFlow{codec: codec, verifier: verifier, subs: make(map[int]func(Result))}
}

// Subscribe registers fn and returns a function that removes it.
func (f *ReturnFlow) Subscribe(fn func(Result)) (unsubscribe func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

// Handle checks a return query locally, then with the backend. The payment
// query flag only decides whether this is a return at all.
func (f *ReturnFlow) Handle(ctx context.Context, query map[string]string) (*Result, error) {
	if query[models.FieldSignature] == "" || query[models.FieldPayment] != models.PaymentMarkSuccess {
		return nil, ErrNotAPaymentReturn
	}

	if err := f.codec.Verify(query, query[models.FieldSignature]); err != nil {
		telemetry.SignatureFailures.WithLabelValues("portal").Inc()
		telemetry.PaymentReturns.WithLabelValues("invalid_signature").Inc()
		telemetry.Logger.Warn("Payment return signature rejected",
			zap.String("order_id", query[models.FieldOrderID]),
		)
		return nil, err
	}

	resp, err := f.verifier.Verify(ctx, query)
	if err != nil {
		telemetry.PaymentReturns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	if resp.Status != models.VerifyStatusSuccess {
		telemetry.PaymentReturns.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %s", ErrVerificationFailed, resp.Message)
	}

	result := Result{
		OrderID:       query[models.FieldOrderID],
		TransactionNo: query[models.FieldTransactionNo],
		Message:       resp.Message,
	}
	telemetry.PaymentReturns.WithLabelValues("success").Inc()
	telemetry.Logger.Info("Payment return confirmed",
		zap.String("order_id", result.OrderID),
		zap.String("transaction_no", result.TransactionNo),
	)

	f.notify(result)
	return &result, nil
}

func (f *ReturnFlow) notify(r Result) {
	f.mu.Lock()
	subs := make([]func(Result), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	for _, fn := range subs {
		fn(r)
	}
}

// VerifyClient calls GET {apiURL}/payment/payment_return.
type VerifyClient struct {
	client *resty.Client
	url    string
}

func NewVerifyClient(apiURL string, timeout time.Duration) *VerifyClient {
	client := resty.New().
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetTimeout(timeout)
	return &VerifyClient{client: client, url: apiURL + "/payment/payment_return"}
}

func (c *VerifyClient) Verify(ctx context.Context, params map[string]string) (models.VerifyResponse, error) {
	var out models.VerifyResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&out).
		SetError(&out).
		Get(c.url)
	if err != nil {
		return models.VerifyResponse{}, err
	}
	if out.Status == "" {
		return models.VerifyResponse{}, fmt.Errorf("unexpected verify response: status %d", resp.StatusCode())
	}
	return out, nil
}
