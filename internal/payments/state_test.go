package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communityhub/backend/internal/models"
)

func st(s models.RegistrationStatus) *models.RegistrationStatus { return &s }
func ps(p models.PaymentStatus) *models.PaymentStatus           { return &p }

func TestIntakeFree(t *testing.T) {
	got, err := Intake(0, "", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)
}

func TestIntakePaid(t *testing.T) {
	got, err := Intake(500000, "momo", "ABC123")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, models.PaymentPendingVerification, got.PaymentStatus)
	assert.Equal(t, int64(500000), got.Amount)

	_, err = Intake(500000, "momo", "  ")
	assert.ErrorIs(t, err, ErrTransactionRequired)
	_, err = Intake(500000, "", "ABC123")
	assert.ErrorIs(t, err, ErrPaymentMethodRequired)
	_, err = Intake(500000, "cash", "ABC123")
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
	assert.True(t, IsBadInput(err))
}

func TestApplyCoupling(t *testing.T) {
	awaiting := State{Status: models.StatusPending, PaymentStatus: models.PaymentPendingVerification, Amount: 100}

	next, err := Apply(awaiting, Change{PaymentStatus: ps(models.PaymentPaid)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, next.Status)
	assert.True(t, BecameConfirmed(awaiting, next))

	next, err = Apply(awaiting, Change{PaymentStatus: ps(models.PaymentFailed)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, next.Status)

	next, err = Apply(awaiting, Change{Status: st(models.StatusConfirmed)})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, next.PaymentStatus)

	next, err = Apply(awaiting, Change{Status: st(models.StatusCancelled)})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPendingVerification, next.PaymentStatus)
}

func TestApplyRejects(t *testing.T) {
	confirmed := State{Status: models.StatusConfirmed, PaymentStatus: models.PaymentPaid}

	_, err := Apply(confirmed, Change{})
	assert.ErrorIs(t, err, ErrNoChange)

	_, err = Apply(confirmed, Change{Status: st("archived")})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = Apply(confirmed, Change{PaymentStatus: ps("refunded")})
	assert.ErrorIs(t, err, ErrInvalidPaymentStatus)

	_, err = Apply(confirmed, Change{PaymentStatus: ps(models.PaymentFailed)})
	assert.ErrorIs(t, err, ErrInvalidTransition, "paid is terminal")

	_, err = Apply(confirmed, Change{Status: st(models.StatusPending)})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Apply(
		State{Status: models.StatusPending, PaymentStatus: models.PaymentPending},
		Change{Status: st(models.StatusConfirmed), PaymentStatus: ps(models.PaymentFailed)},
	)
	assert.ErrorIs(t, err, ErrInvalidTransition, "confirmed requires paid")
}

func TestApplyReopen(t *testing.T) {
	cancelled := State{Status: models.StatusCancelled, PaymentStatus: models.PaymentFailed}
	next, err := Apply(cancelled, Change{Status: st(models.StatusPending), PaymentStatus: ps(models.PaymentPendingVerification)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, next.Status)
	assert.Equal(t, models.PaymentPendingVerification, next.PaymentStatus)
	assert.False(t, BecameConfirmed(cancelled, next))

	rejected, err := Intake(100000, "momo", "T1")
	require.NoError(t, err)
	rejected, err = Verify(rejected, false)
	require.NoError(t, err)
	reopened, err := Apply(rejected, Change{PaymentStatus: ps(models.PaymentPendingVerification)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, reopened.Status, "a reopened claim goes back to the verification queue")
	assert.Equal(t, models.PaymentPendingVerification, reopened.PaymentStatus)

	approved, err := Verify(reopened, true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, approved.Status)
	assert.Equal(t, models.PaymentPaid, approved.PaymentStatus)
	assert.True(t, BecameConfirmed(rejected, approved))
}

func TestVerify(t *testing.T) {
	awaiting := State{Status: models.StatusPending, PaymentStatus: models.PaymentPendingVerification}

	next, err := Verify(awaiting, true)
	require.NoError(t, err)
	assert.Equal(t, State{Status: models.StatusConfirmed, PaymentStatus: models.PaymentPaid}, next)

	next, err = Verify(awaiting, false)
	require.NoError(t, err)
	assert.Equal(t, State{Status: models.StatusCancelled, PaymentStatus: models.PaymentFailed}, next)

	_, err = Verify(next, true)
	assert.ErrorIs(t, err, ErrNotAwaitingVerification)

	_, err = Verify(State{Status: models.StatusCancelled, PaymentStatus: models.PaymentPendingVerification}, true)
	assert.ErrorIs(t, err, ErrNotAwaitingVerification)
}
