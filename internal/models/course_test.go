package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptrF(v float64) *float64 { return &v }
func ptrI(v int64) *int64     { return &v }
func ptrT(v time.Time) *time.Time {
	return &v
}

func TestCoursePriceAt(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	start := now.Add(-24 * time.Hour)
	end := now.Add(24 * time.Hour)

	cases := []struct {
		name   string
		course Course
		want   int64
	}{
		{"no discount", Course{Price: 1000000}, 1000000},
		{"inactive flag ignores amount", Course{Price: 1000000, DiscountAmount: ptrI(200000)}, 1000000},
		{"percentage", Course{Price: 1000000, IsDiscountActive: true, DiscountPercentage: ptrF(25)}, 750000},
		{"fixed amount", Course{Price: 1000000, IsDiscountActive: true, DiscountAmount: ptrI(300000)}, 700000},
		{"amount above price floors at zero", Course{Price: 100000, IsDiscountActive: true, DiscountAmount: ptrI(500000)}, 0},
		{"negative amount never raises price", Course{Price: 100000, IsDiscountActive: true, DiscountAmount: ptrI(-50000)}, 100000},
		{"inside window", Course{Price: 500000, IsDiscountActive: true, DiscountAmount: ptrI(100000), DiscountStartDate: ptrT(start), DiscountEndDate: ptrT(end)}, 400000},
		{"before window", Course{Price: 500000, IsDiscountActive: true, DiscountAmount: ptrI(100000), DiscountStartDate: ptrT(end), DiscountEndDate: ptrT(end.Add(time.Hour))}, 500000},
		{"after window", Course{Price: 500000, IsDiscountActive: true, DiscountPercentage: ptrF(50), DiscountStartDate: ptrT(start.Add(-time.Hour)), DiscountEndDate: ptrT(start)}, 500000},
		{"only start date set does not gate", Course{Price: 500000, IsDiscountActive: true, DiscountPercentage: ptrF(10), DiscountStartDate: ptrT(end)}, 450000},
		{"free course", Course{Price: 0, IsDiscountActive: true, DiscountPercentage: ptrF(50)}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.course.PriceAt(now)
			assert.Equal(t, tc.want, got)
			assert.LessOrEqual(t, got, tc.course.Price)
			assert.GreaterOrEqual(t, got, int64(0))
		})
	}
}

func TestApplyPricing(t *testing.T) {
	now := time.Now()
	c := Course{Price: 200000, IsDiscountActive: true, DiscountPercentage: ptrF(10)}
	c.ApplyPricing(now)
	assert.Equal(t, int64(180000), c.EffectivePrice)
	assert.True(t, c.DiscountApplies)

	c.IsDiscountActive = false
	c.ApplyPricing(now)
	assert.Equal(t, int64(200000), c.EffectivePrice)
	assert.False(t, c.DiscountApplies)
}

func TestCourseValidateDiscount(t *testing.T) {
	now := time.Now()
	assert.NoError(t, (&Course{}).ValidateDiscount())
	assert.NoError(t, (&Course{DiscountPercentage: ptrF(100)}).ValidateDiscount())
	assert.ErrorIs(t, (&Course{DiscountPercentage: ptrF(10), DiscountAmount: ptrI(5)}).ValidateDiscount(), ErrDiscountBothKinds)
	assert.ErrorIs(t, (&Course{DiscountPercentage: ptrF(0)}).ValidateDiscount(), ErrDiscountPercentage)
	assert.ErrorIs(t, (&Course{DiscountPercentage: ptrF(120)}).ValidateDiscount(), ErrDiscountPercentage)
	assert.ErrorIs(t, (&Course{DiscountAmount: ptrI(-1)}).ValidateDiscount(), ErrDiscountAmount)
	assert.ErrorIs(t, (&Course{DiscountStartDate: ptrT(now), DiscountEndDate: ptrT(now.Add(-time.Hour))}).ValidateDiscount(), ErrDiscountWindow)
}
