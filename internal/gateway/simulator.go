package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sdms/payment-gateway/internal/models"
	"github.com/sdms/payment-gateway/internal/signature"
	"github.com/sdms/payment-gateway/internal/telemetry"
)

var (
	ErrInvalidPaymentRequest = errors.New("invalid payment request")
	ErrSessionNotFound       = errors.New("checkout session not found")
)

// Session is a snapshot of one checkout.
type Session struct {
	ID            string            `json:"sessionId"`
	State         State             `json:"state"`
	Order         map[string]string `json:"order"`
	DisplayAmount string            `json:"displayAmount"`
	CardHolder    string            `json:"cardHolder,omitempty"`
	CardLast4     string            `json:"cardLast4,omitempty"`
	TransactionNo string            `json:"transactionNo,omitempty"`
	LastError     string            `json:"lastError,omitempty"`
	RedirectURL   string            `json:"redirectUrl,omitempty"`
	RedirectAfter int64             `json:"redirectAfterMs,omitempty"`
	ExpiresAt     time.Time         `json:"expiresAt"`
}

type entry struct {
	mu      sync.Mutex
	session Session
}

type Options struct {
	OtpReference  string
	ReturnURL     string
	RedirectDelay time.Duration
	SessionTTL    time.Duration
}

// Simulator drives checkout sessions through Machine and runs the resulting
// side effects. Sessions live in memory only.
type Simulator struct {
	machine Machine
	ipn     IPNSender
	opts    Options

	mu       sync.Mutex
	sessions map[string]*entry

	now              func() time.Time
	newTransactionNo func() string
}

func NewSimulator(opts Options, ipn IPNSender) *Simulator {
	return &Simulator{
		machine:          Machine{OtpReference: opts.OtpReference},
		ipn:              ipn,
		opts:             opts,
		sessions:         make(map[string]*entry),
		now:              time.Now,
		newTransactionNo: randomTransactionNo,
	}
}

// Open starts a checkout for a signed parameter bag. The bank does not hold
// the merchant secret, so the signature is carried, not checked.
func (s *Simulator) Open(params map[string]string) (Session, error) {
	for _, k := range []string{models.FieldOrderID, models.FieldAmount, models.FieldSignature} {
		if params[k] == "" {
			return Session{}, ErrInvalidPaymentRequest
		}
	}
	amount, err := models.ParseAmount(params[models.FieldAmount])
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidPaymentRequest, err)
	}

	order := make(map[string]string, len(params))
	for k, v := range params {
		order[k] = v
	}

	now := s.now()
	e := &entry{session: Session{
		ID:            uuid.NewString(),
		State:         StateCollectingCard,
		Order:         order,
		DisplayAmount: FormatVND(amount),
		ExpiresAt:     now.Add(s.opts.SessionTTL),
	}}

	s.mu.Lock()
	s.sweep(now)
	s.sessions[e.session.ID] = e
	s.mu.Unlock()

	telemetry.Logger.Info("Checkout session opened",
		zap.String("session_id", e.session.ID),
		zap.String("order_id", order[models.FieldOrderID]),
	)
	return e.session, nil
}

func (s *Simulator) Get(id string) (Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session, nil
}

func (s *Simulator) SubmitCard(ctx context.Context, id, number, holder string) (Session, error) {
	return s.apply(ctx, id, CardSubmitted{Number: number, Holder: holder})
}

func (s *Simulator) SubmitOtp(ctx context.Context, id, otp string) (Session, error) {
	return s.apply(ctx, id, OtpSubmitted{Otp: otp})
}

func (s *Simulator) Retry(ctx context.Context, id string) (Session, error) {
	return s.apply(ctx, id, RetryRequested{})
}

// apply holds the session lock for the whole step, IPN call included, so a
// session never has two callbacks in flight.
func (s *Simulator) apply(ctx context.Context, id string, ev Event) (Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	effect, err := s.step(&e.session, ev)
	if err != nil {
		return e.session, err
	}
	if card, ok := ev.(CardSubmitted); ok {
		e.session.CardHolder = strings.TrimSpace(card.Holder)
		e.session.CardLast4 = last4(card.Number)
	}

	for effect != EffectNone {
		switch effect {
		case EffectCallIPN:
			effect, err = s.callIPN(ctx, &e.session)
			if err != nil {
				return e.session, err
			}
		case EffectRedirect:
			e.session.RedirectURL = s.redirectURL(e.session)
			e.session.RedirectAfter = s.opts.RedirectDelay.Milliseconds()
			effect = EffectNone
		}
	}
	return e.session, nil
}

func (s *Simulator) step(sess *Session, ev Event) (Effect, error) {
	from := sess.State
	to, effect, err := s.machine.Next(from, ev)
	if err != nil {
		return EffectNone, err
	}
	sess.State = to
	telemetry.GatewayTransitions.WithLabelValues(string(from), string(to)).Inc()
	return effect, nil
}

func (s *Simulator) callIPN(ctx context.Context, sess *Session) (Effect, error) {
	sess.TransactionNo = s.newTransactionNo()
	sess.LastError = ""
	sess.RedirectURL = ""

	cb := models.CallbackFromParams(sess.Order)
	cb.ResponseCode = models.ResponseCodeSuccess
	cb.TransactionNo = sess.TransactionNo

	var ev Event = IpnAccepted{}
	if err := s.ipn.Send(ctx, cb); err != nil {
		telemetry.Logger.Warn("IPN delivery failed",
			zap.String("session_id", sess.ID),
			zap.String("order_id", cb.OrderID),
			zap.Error(err),
		)
		sess.LastError = err.Error()
		ev = IpnRejected{Err: err}
	} else {
		telemetry.Logger.Info("IPN acknowledged",
			zap.String("session_id", sess.ID),
			zap.String("order_id", cb.OrderID),
			zap.String("transaction_no", cb.TransactionNo),
		)
	}
	return s.step(sess, ev)
}

// redirectURL returns the merchant landing URL carrying the signed fields
// unchanged plus the bank's result markers.
func (s *Simulator) redirectURL(sess Session) string {
	query := signature.Values(sess.Order)
	query.Set(models.FieldPayment, models.PaymentMarkSuccess)
	query.Set(models.FieldResponseCode, models.ResponseCodeSuccess)
	query.Set(models.FieldTransactionNo, sess.TransactionNo)

	target, err := url.Parse(s.opts.ReturnURL)
	if err != nil {
		return s.opts.ReturnURL + "?" + query.Encode()
	}
	target.RawQuery = query.Encode()
	return target.String()
}

func (s *Simulator) lookup(id string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(s.now())
	e, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// sweep drops expired sessions. Callers hold s.mu.
func (s *Simulator) sweep(now time.Time) {
	for id, e := range s.sessions {
		if e.expired(now) {
			delete(s.sessions, id)
		}
	}
}

func (e *entry) expired(now time.Time) bool {
	if !e.mu.TryLock() {
		// In use, so not abandoned.
		return false
	}
	defer e.mu.Unlock()
	return now.After(e.session.ExpiresAt)
}

func randomTransactionNo() string {
	return fmt.Sprintf("%d", 10000000+rand.Intn(90000000))
}

func last4(number string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}
