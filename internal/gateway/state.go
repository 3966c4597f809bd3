package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// State is a step of the simulated bank checkout.
type State string

const (
	StateCollectingCard State = "COLLECTING_CARD"
	StateCollectingOtp  State = "COLLECTING_OTP"
	StateProcessing     State = "PROCESSING"
	StateSucceeded      State = "SUCCEEDED"
	StateFailed         State = "FAILED"
)

var (
	ErrCardDetailsRequired = errors.New("card number and holder name are required")
	ErrOtpMismatch         = errors.New("otp does not match")
	ErrInvalidTransition   = errors.New("event not allowed in current state")
)

// Event is an input to the checkout state machine.
type Event interface {
	name() string
}

type CardSubmitted struct {
	Number string
	Holder string
}

type OtpSubmitted struct {
	Otp string
}

type IpnAccepted struct{}

type IpnRejected struct {
	Err error
}

type RetryRequested struct{}

func (CardSubmitted) name() string  { return "card_submitted" }
func (OtpSubmitted) name() string   { return "otp_submitted" }
func (IpnAccepted) name() string    { return "ipn_accepted" }
func (IpnRejected) name() string    { return "ipn_rejected" }
func (RetryRequested) name() string { return "retry_requested" }

// Effect is the side effect the driver must run after a transition.
type Effect int

const (
	EffectNone Effect = iota
	EffectCallIPN
	EffectRedirect
)

// Machine is the pure transition function. It never performs I/O.
type Machine struct {
	OtpReference string
}

// Next returns the state reached from current on ev. On error the state is
// current and the effect is EffectNone.
func (m Machine) Next(current State, ev Event) (State, Effect, error) {
	switch current {
	case StateCollectingCard:
		if e, ok := ev.(CardSubmitted); ok {
			if strings.TrimSpace(e.Number) == "" || strings.TrimSpace(e.Holder) == "" {
				return current, EffectNone, ErrCardDetailsRequired
			}
			return StateCollectingOtp, EffectNone, nil
		}
	case StateCollectingOtp:
		if e, ok := ev.(OtpSubmitted); ok {
			if e.Otp != m.OtpReference {
				return current, EffectNone, ErrOtpMismatch
			}
			return StateProcessing, EffectCallIPN, nil
		}
	case StateProcessing:
		switch ev.(type) {
		case IpnAccepted:
			return StateSucceeded, EffectRedirect, nil
		case IpnRejected:
			return StateFailed, EffectNone, nil
		}
	case StateFailed:
		if _, ok := ev.(RetryRequested); ok {
			return StateProcessing, EffectCallIPN, nil
		}
	}
	return current, EffectNone, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, ev.name(), current)
}
