package coupon

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Result is the outcome of evaluating a coupon against an order.
// When Valid is false, Reasons holds every failed rule, not just the first.
type Result struct {
	Valid          bool
	DiscountType   DiscountType
	DiscountValue  decimal.Decimal
	Discount       decimal.Decimal
	FinalAmount    decimal.Decimal
	UserUsageLimit int
	Reasons        []string
}

// Evaluate decides whether the coupon may be applied to an order of the
// given amount by the given user, and computes the discount when it may.
//
// It is a pure function: no I/O, no mutation, identical inputs yield
// identical results. The per-user redemption count (userUsed) is supplied by
// the caller from the usage ledger rather than fetched here, which keeps the
// evaluator side-effect free.
//
// Every rule is checked and every failing reason is collected, so a caller
// always sees the complete rejection report.
func Evaluate(c *Coupon, orderAmount decimal.Decimal, userID string, userUsed int, now time.Time) Result {
	var reasons []string

	if c.Status != StatusActive {
		reasons = append(reasons, "Coupon is inactive")
	}
	if now.Before(c.StartsAt) {
		reasons = append(reasons, "Coupon not started yet")
	}
	if now.After(c.ExpiresAt) {
		reasons = append(reasons, "Coupon expired")
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		reasons = append(reasons, "Coupon usage limit reached")
	}
	if orderAmount.LessThan(c.MinOrderValue) {
		reasons = append(reasons, fmt.Sprintf("Minimum order value is %s", c.MinOrderValue))
	}
	if !c.AppliesTo(userID) {
		reasons = append(reasons, "Coupon is not applicable for this user")
	}
	if c.UserUsageLimit > 0 && userUsed >= c.UserUsageLimit {
		reasons = append(reasons, "User has exhausted this coupon's per-user limit")
	}

	if len(reasons) > 0 {
		return Result{Valid: false, Reasons: reasons}
	}

	discount := computeDiscount(c, orderAmount)

	return Result{
		Valid:          true,
		DiscountType:   c.Type,
		DiscountValue:  c.Value,
		Discount:       discount,
		FinalAmount:    orderAmount.Sub(discount),
		UserUsageLimit: c.UserUsageLimit,
	}
}

// computeDiscount applies the coupon's discount rule to the order amount.
// The result is rounded to the currency's minor unit, then clamped to
// [0, orderAmount] so malformed configuration (negative value, fixed
// discount larger than the order) cannot break the discount invariant.
func computeDiscount(c *Coupon, orderAmount decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal

	switch c.Type {
	case DiscountPercentage:
		amount = orderAmount.Mul(c.Value).Div(hundred)
		if c.MaxDiscount.IsPositive() {
			amount = decimal.Min(amount, c.MaxDiscount)
		}
	case DiscountFixed:
		amount = c.Value
	default:
		return zero
	}

	amount = amount.Round(2)

	if amount.IsNegative() {
		return zero
	}
	return decimal.Min(amount, orderAmount)
}
