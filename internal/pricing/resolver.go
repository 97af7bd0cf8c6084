package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodHostedField Method = "hosted_field"
	MethodWalletPopup Method = "wallet_popup"
)

// Flat discount applied when paying through hosted card fields.
var cardDiscountPercent = decimal.NewFromInt(1)

// GeoPrice describes how a base USD amount maps to a buyer's region:
// either a multiplier on the USD amount or a fixed local override.
type GeoPrice struct {
	Currency      string
	Multiplier    decimal.Decimal
	FixedOverride *decimal.Decimal
}

type Table map[string]GeoPrice

type Coupon struct {
	Code            string
	DiscountPercent decimal.Decimal
}

// Quote is the resolved, final chargeable amount. FinalAmount is what is
// sent to the provider, to the cent; confirmation steps never recompute it.
type Quote struct {
	BaseAmount      decimal.Decimal
	Currency        string
	DiscountPercent decimal.Decimal
	CouponCode      string
	FinalAmount     decimal.Decimal
}

// Cents returns FinalAmount in minor units for provider and storage use.
func (q Quote) Cents() int64 {
	return q.FinalAmount.Mul(decimal.NewFromInt(100)).IntPart()
}

// NormalizeCouponCode is the client-side format check: presence only,
// upper-cased. Eligibility is revalidated server-side at capture time.
func NormalizeCouponCode(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	return code, code != ""
}

// Resolve computes the quote for a base USD amount: geography conversion,
// then coupon discount, then the card discount on the hosted-field path.
// An invalid coupon leaves the quote unchanged with the code cleared.
func Resolve(baseUSD decimal.Decimal, table Table, geoKey string, coupon *Coupon, method Method) Quote {
	hundred := decimal.NewFromInt(100)

	base := baseUSD
	currency := "USD"
	if geo, ok := table[geoKey]; ok {
		currency = geo.Currency
		if geo.FixedOverride != nil {
			base = *geo.FixedOverride
		} else {
			base = baseUSD.Mul(geo.Multiplier)
		}
	}

	q := Quote{
		BaseAmount:  base,
		Currency:    currency,
		FinalAmount: base,
	}

	if coupon != nil {
		if code, ok := NormalizeCouponCode(coupon.Code); ok {
			q.CouponCode = code
			q.DiscountPercent = coupon.DiscountPercent
			q.FinalAmount = q.FinalAmount.Mul(hundred.Sub(coupon.DiscountPercent)).Div(hundred)
		}
	}

	if method == MethodHostedField {
		q.FinalAmount = q.FinalAmount.Mul(hundred.Sub(cardDiscountPercent)).Div(hundred)
	}

	q.FinalAmount = q.FinalAmount.Round(2)
	return q
}
