// Package payments holds the manual payment-verification state machine shared by
// event registrations and course enrollments.
package payments

import (
	"errors"
	"strings"

	"github.com/communityhub/backend/internal/models"
)

var (
	ErrPaymentMethodRequired   = errors.New("payment_method is required for paid items")
	ErrInvalidPaymentMethod    = errors.New("payment_method must be one of momo, zalopay, vnpay, bank_transfer")
	ErrTransactionRequired     = errors.New("transaction_id is required for paid items")
	ErrInvalidStatus           = errors.New("invalid status")
	ErrInvalidPaymentStatus    = errors.New("invalid payment_status")
	ErrNoChange                = errors.New("status or payment_status is required")
	ErrInvalidTransition       = errors.New("transition not allowed")
	ErrNotAwaitingVerification = errors.New("payment is not awaiting verification")
)

// State is the status pair of a registration or enrollment.
type State struct {
	Status        models.RegistrationStatus
	PaymentStatus models.PaymentStatus
	Amount        int64
}

// Change is an admin update; nil fields are left to the coupling rules.
type Change struct {
	Status        *models.RegistrationStatus
	PaymentStatus *models.PaymentStatus
}

var statusTransitions = map[models.RegistrationStatus][]models.RegistrationStatus{
	models.StatusPending:   {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed: {models.StatusCancelled},
	models.StatusCancelled: {models.StatusPending},
}

var paymentTransitions = map[models.PaymentStatus][]models.PaymentStatus{
	models.PaymentPending:             {models.PaymentPendingVerification, models.PaymentPaid, models.PaymentFailed},
	models.PaymentPendingVerification: {models.PaymentPaid, models.PaymentFailed},
	models.PaymentFailed:              {models.PaymentPendingVerification, models.PaymentPaid},
	models.PaymentPaid:                nil,
}

// IsBadInput reports whether err is caused by the request rather than the record's state.
func IsBadInput(err error) bool {
	return errors.Is(err, ErrPaymentMethodRequired) ||
		errors.Is(err, ErrInvalidPaymentMethod) ||
		errors.Is(err, ErrTransactionRequired) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidPaymentStatus) ||
		errors.Is(err, ErrNoChange)
}

// Intake returns the initial state of a new submission. Free items are confirmed and
// paid at once; paid items wait for an admin to check the claimed transaction.
func Intake(price int64, method, transactionID string) (State, error) {
	if price <= 0 {
		return State{Status: models.StatusConfirmed, PaymentStatus: models.PaymentPaid, Amount: 0}, nil
	}
	method = strings.TrimSpace(method)
	if method == "" {
		return State{}, ErrPaymentMethodRequired
	}
	if !models.ValidPaymentMethod(method) {
		return State{}, ErrInvalidPaymentMethod
	}
	if strings.TrimSpace(transactionID) == "" {
		return State{}, ErrTransactionRequired
	}
	return State{Status: models.StatusPending, PaymentStatus: models.PaymentPendingVerification, Amount: price}, nil
}

// Apply validates ch against cur and returns the resulting state.
//
// Coupling, applied only to the field the change leaves out:
// payment paid confirms a pending record, payment failed cancels a pending record,
// a claim reopened on a cancelled record returns it to pending, and status confirmed
// marks the payment paid. A confirmed record is always paid.
func Apply(cur State, ch Change) (State, error) {
	if ch.Status == nil && ch.PaymentStatus == nil {
		return cur, ErrNoChange
	}
	if ch.Status != nil && !ch.Status.Valid() {
		return cur, ErrInvalidStatus
	}
	if ch.PaymentStatus != nil && !ch.PaymentStatus.Valid() {
		return cur, ErrInvalidPaymentStatus
	}

	next := cur
	if ch.Status != nil && *ch.Status != cur.Status {
		if !allowedStatus(cur.Status, *ch.Status) {
			return cur, ErrInvalidTransition
		}
		next.Status = *ch.Status
	}
	if ch.PaymentStatus != nil && *ch.PaymentStatus != cur.PaymentStatus {
		if !allowedPayment(cur.PaymentStatus, *ch.PaymentStatus) {
			return cur, ErrInvalidTransition
		}
		next.PaymentStatus = *ch.PaymentStatus
	}

	if ch.Status == nil && cur.Status == models.StatusCancelled &&
		next.PaymentStatus == models.PaymentPendingVerification && cur.PaymentStatus != models.PaymentPendingVerification {
		next.Status = models.StatusPending
	}
	if ch.Status == nil && cur.Status == models.StatusPending {
		switch {
		case next.PaymentStatus == models.PaymentPaid && cur.PaymentStatus != models.PaymentPaid:
			next.Status = models.StatusConfirmed
		case next.PaymentStatus == models.PaymentFailed && cur.PaymentStatus != models.PaymentFailed:
			next.Status = models.StatusCancelled
		}
	}
	if ch.PaymentStatus == nil && next.Status == models.StatusConfirmed && next.PaymentStatus != models.PaymentPaid {
		if !allowedPayment(next.PaymentStatus, models.PaymentPaid) {
			return cur, ErrInvalidTransition
		}
		next.PaymentStatus = models.PaymentPaid
	}

	if next.Status == models.StatusConfirmed && next.PaymentStatus != models.PaymentPaid {
		return cur, ErrInvalidTransition
	}
	return next, nil
}

// Verify applies an admin decision on a claimed payment. Cancelled records are not awaiting one.
func Verify(cur State, approved bool) (State, error) {
	if cur.PaymentStatus != models.PaymentPendingVerification || cur.Status == models.StatusCancelled {
		return cur, ErrNotAwaitingVerification
	}
	if approved {
		s := models.StatusConfirmed
		return Apply(cur, Change{Status: &s})
	}
	p := models.PaymentFailed
	return Apply(cur, Change{PaymentStatus: &p})
}

// BecameConfirmed reports a transition into confirmed, which triggers the confirmation email.
func BecameConfirmed(prev, next State) bool {
	return prev.Status != models.StatusConfirmed && next.Status == models.StatusConfirmed
}

func allowedStatus(from, to models.RegistrationStatus) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func allowedPayment(from, to models.PaymentStatus) bool {
	for _, p := range paymentTransitions[from] {
		if p == to {
			return true
		}
	}
	return false
}
