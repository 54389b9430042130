package coupon

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// CreateParams is the typed admin payload for creating a coupon. Unknown or
// mistyped fields are rejected at decode time; semantic validation happens
// in Validate.
type CreateParams struct {
	Code            string
	Type            DiscountType
	Value           decimal.Decimal
	MaxDiscount     decimal.Decimal
	MinOrderValue   decimal.Decimal
	StartsAt        time.Time
	ExpiresAt       time.Time
	UsageLimit      int
	UserUsageLimit  int
	ApplicableUsers []string
	Status          Status
}

// Validate checks required fields and numeric ranges, returning an error
// wrapping ErrInvalidPayload on the first violation.
func (p *CreateParams) Validate() error {
	if NormalizeCode(p.Code) == "" {
		return errors.Wrap(ErrInvalidPayload, "code is required")
	}
	if p.Type != DiscountPercentage && p.Type != DiscountFixed {
		return errors.Wrapf(ErrInvalidPayload, "unsupported discount type %q", p.Type)
	}
	if !p.Value.IsPositive() {
		return errors.Wrap(ErrInvalidPayload, "value must be positive")
	}
	if p.Type == DiscountPercentage && p.Value.GreaterThan(hundred) {
		return errors.Wrap(ErrInvalidPayload, "percentage value must not exceed 100")
	}
	if p.MaxDiscount.IsNegative() {
		return errors.Wrap(ErrInvalidPayload, "maxDiscount must not be negative")
	}
	if p.MinOrderValue.IsNegative() {
		return errors.Wrap(ErrInvalidPayload, "minOrderValue must not be negative")
	}
	if p.StartsAt.IsZero() || p.ExpiresAt.IsZero() {
		return errors.Wrap(ErrInvalidPayload, "startDate and expiryDate are required")
	}
	if p.ExpiresAt.Before(p.StartsAt) {
		return errors.Wrap(ErrInvalidPayload, "expiryDate must not precede startDate")
	}
	if p.UsageLimit < 0 {
		return errors.Wrap(ErrInvalidPayload, "usageLimit must not be negative")
	}
	if p.UserUsageLimit < 0 {
		return errors.Wrap(ErrInvalidPayload, "userUsageLimit must not be negative")
	}
	if p.Status != "" && !ValidStatus(p.Status) {
		return errors.Wrapf(ErrInvalidPayload, "unsupported status %q", p.Status)
	}
	return nil
}

// UpdateParams is the typed admin payload for a partial coupon update.
// Nil fields are left untouched.
type UpdateParams struct {
	Code            *string
	Type            *DiscountType
	Value           *decimal.Decimal
	MaxDiscount     *decimal.Decimal
	MinOrderValue   *decimal.Decimal
	StartsAt        *time.Time
	ExpiresAt       *time.Time
	UsageLimit      *int
	UserUsageLimit  *int
	ApplicableUsers *[]string
	Status          *Status
}

// apply merges the patch into c. Code is re-normalized; uniqueness is
// re-checked by the store on persist.
func (p *UpdateParams) apply(c *Coupon) {
	if p.Code != nil {
		c.Code = NormalizeCode(*p.Code)
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Value != nil {
		c.Value = *p.Value
	}
	if p.MaxDiscount != nil {
		c.MaxDiscount = *p.MaxDiscount
	}
	if p.MinOrderValue != nil {
		c.MinOrderValue = *p.MinOrderValue
	}
	if p.StartsAt != nil {
		c.StartsAt = *p.StartsAt
	}
	if p.ExpiresAt != nil {
		c.ExpiresAt = *p.ExpiresAt
	}
	if p.UsageLimit != nil {
		c.UsageLimit = *p.UsageLimit
	}
	if p.UserUsageLimit != nil {
		c.UserUsageLimit = *p.UserUsageLimit
	}
	if p.ApplicableUsers != nil {
		c.ApplicableUsers = *p.ApplicableUsers
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
}

// validate checks the patched coupon still satisfies the same rules as
// creation.
func (p *UpdateParams) validate(c *Coupon) error {
	cp := CreateParams{
		Code:           c.Code,
		Type:           c.Type,
		Value:          c.Value,
		MaxDiscount:    c.MaxDiscount,
		MinOrderValue:  c.MinOrderValue,
		StartsAt:       c.StartsAt,
		ExpiresAt:      c.ExpiresAt,
		UsageLimit:     c.UsageLimit,
		UserUsageLimit: c.UserUsageLimit,
		Status:         c.Status,
	}
	return cp.Validate()
}
