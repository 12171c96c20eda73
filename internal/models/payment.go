package models

// RegistrationStatus is the attendance status of a registration or enrollment.
type RegistrationStatus string

const (
	StatusPending   RegistrationStatus = "pending"
	StatusConfirmed RegistrationStatus = "confirmed"
	StatusCancelled RegistrationStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// PaymentStatus is tracked separately from attendance status.
type PaymentStatus string

const (
	PaymentPending             PaymentStatus = "pending"
	PaymentPendingVerification PaymentStatus = "pending_verification"
	PaymentPaid                PaymentStatus = "paid"
	PaymentFailed              PaymentStatus = "failed"
)

// Valid reports whether p is a known payment status.
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPendingVerification, PaymentPaid, PaymentFailed:
		return true
	}
	return false
}

// Payment methods a payer can claim after an out-of-band transfer.
const (
	PaymentMethodMomo         = "momo"
	PaymentMethodZaloPay      = "zalopay"
	PaymentMethodVNPay        = "vnpay"
	PaymentMethodBankTransfer = "bank_transfer"
)

// PaymentMethods lists the accepted payment method tags.
var PaymentMethods = []string{PaymentMethodMomo, PaymentMethodZaloPay, PaymentMethodVNPay, PaymentMethodBankTransfer}

// ValidPaymentMethod reports whether m is an accepted payment method tag.
func ValidPaymentMethod(m string) bool {
	for _, pm := range PaymentMethods {
		if pm == m {
			return true
		}
	}
	return false
}
