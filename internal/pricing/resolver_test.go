package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestResolveCouponAndCardDiscount(t *testing.T) {
	coupon := &Coupon{Code: "save10", DiscountPercent: decimal.NewFromInt(10)}

	q := Resolve(dec("100.00"), Table{}, "US", coupon, MethodHostedField)

	// 100.00 * 0.90 * 0.99 = 89.10
	assert.Equal(t, "89.1", q.FinalAmount.String())
	assert.Equal(t, "USD", q.Currency)
	assert.Equal(t, "SAVE10", q.CouponCode)
	assert.Equal(t, int64(8910), q.Cents())
}

func TestResolveCardDiscountOnlyOnHostedPath(t *testing.T) {
	coupon := &Coupon{Code: "SAVE10", DiscountPercent: decimal.NewFromInt(10)}

	q := Resolve(dec("100.00"), Table{}, "US", coupon, MethodWalletPopup)

	assert.Equal(t, "90", q.FinalAmount.String())
}

func TestResolveInvalidCouponFormatClearsCode(t *testing.T) {
	coupon := &Coupon{Code: "   ", DiscountPercent: decimal.NewFromInt(50)}

	q := Resolve(dec("100.00"), Table{}, "US", coupon, MethodWalletPopup)

	assert.Empty(t, q.CouponCode)
	assert.Equal(t, "100", q.FinalAmount.String())
	assert.True(t, q.DiscountPercent.IsZero())
}

func TestResolveGeoMultiplier(t *testing.T) {
	table := Table{
		"IN": {Currency: "INR", Multiplier: dec("75")},
	}

	q := Resolve(dec("10.00"), table, "IN", nil, MethodWalletPopup)

	assert.Equal(t, "INR", q.Currency)
	assert.Equal(t, "750", q.FinalAmount.String())
}

func TestResolveGeoFixedOverride(t *testing.T) {
	override := dec("49.99")
	table := Table{
		"BR": {Currency: "BRL", Multiplier: dec("5"), FixedOverride: &override},
	}

	q := Resolve(dec("100.00"), table, "BR", nil, MethodWalletPopup)

	assert.Equal(t, "BRL", q.Currency)
	assert.Equal(t, "49.99", q.FinalAmount.String())
}

func TestResolveUnknownGeoFallsBackToUSD(t *testing.T) {
	table := Table{
		"IN": {Currency: "INR", Multiplier: dec("75")},
	}

	q := Resolve(dec("42.00"), table, "ZZ", nil, MethodWalletPopup)

	assert.Equal(t, "USD", q.Currency)
	assert.Equal(t, "42", q.FinalAmount.String())
}
