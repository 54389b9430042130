package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the order amount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a flat monetary discount capped at the order amount.
	DiscountFixed DiscountType = "fixed"
)

// Status enumerates the coupon lifecycle states. A coupon outside Active is
// never eligible regardless of its validity window.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

var (
	// ErrNotFound is returned when a code or id does not resolve to a coupon.
	ErrNotFound = errors.New("coupon not found")
	// ErrDuplicateCode is returned on create/update when the code collides
	// case-insensitively with an existing coupon.
	ErrDuplicateCode = errors.New("coupon code already exists")
	// ErrInvalidStatus is returned when a status transition targets a value
	// outside {active, inactive}.
	ErrInvalidStatus = errors.New("invalid coupon status")
	// ErrInvalidPayload is returned when a create/update payload fails
	// boundary validation.
	ErrInvalidPayload = errors.New("invalid coupon payload")
	// ErrUsageLimitExceeded is returned when the atomic redemption increment
	// cannot apply because the usage limit is already reached.
	ErrUsageLimitExceeded = errors.New("coupon usage limit exceeded")
)

// Coupon is a named discount rule with eligibility constraints and usage
// ceilings. Monetary fields use decimal arithmetic end to end.
type Coupon struct {
	ID   string
	Code string
	Type DiscountType
	// Value is percentage points for DiscountPercentage, a flat currency
	// amount for DiscountFixed.
	Value decimal.Decimal
	// MaxDiscount caps a percentage discount. Zero or negative means no cap.
	// Ignored for fixed discounts.
	MaxDiscount   decimal.Decimal
	MinOrderValue decimal.Decimal
	StartsAt      time.Time
	ExpiresAt     time.Time
	// UsageLimit is the total redemption ceiling across all users.
	// Zero means unlimited.
	UsageLimit int
	// UsedCount is mutated only by redemption; monotonically increasing.
	UsedCount int
	// UserUsageLimit is the per-user redemption ceiling. Defaults to 1.
	UserUsageLimit int
	// ApplicableUsers restricts the coupon to exactly these user ids when
	// non-empty.
	ApplicableUsers []string
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NormalizeCode canonicalizes a coupon code: trimmed and upper-cased.
// Applied at every boundary so lookups are case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// AppliesTo reports whether the coupon's user restriction admits the given
// user. An empty restriction set admits everyone, including anonymous calls.
func (c *Coupon) AppliesTo(userID string) bool {
	if len(c.ApplicableUsers) == 0 {
		return true
	}
	if userID == "" {
		return false
	}
	for _, u := range c.ApplicableUsers {
		if u == userID {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a recognized lifecycle state.
func ValidStatus(s Status) bool {
	return s == StatusActive || s == StatusInactive
}

// ListFilter narrows and paginates coupon listings.
type ListFilter struct {
	Status Status
	Type   DiscountType
	// Code is a free-text substring match against the normalized code.
	Code        string
	CreatedFrom time.Time
	CreatedTo   time.Time
	Limit       int
	Offset      int
}

// ListResult is one page of coupons plus pagination totals.
type ListResult struct {
	Coupons []Coupon
	Total   int
	Pages   int
}

// Store provides persistence for coupon records. Code lookups are
// case-insensitive; code uniqueness is enforced here.
type Store interface {
	Create(ctx context.Context, c *Coupon) error
	GetByID(ctx context.Context, id string) (*Coupon, error)
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	Update(ctx context.Context, c *Coupon) error
	SetStatus(ctx context.Context, id string, status Status) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f ListFilter) (*ListResult, error)
	// IncrementUsage atomically increments the usage counter, but only while
	// the post-increment count stays within the usage limit (or the limit is
	// unset). Returns the new count, or ErrUsageLimitExceeded when the
	// conditional update cannot apply. Never a read-then-write pair.
	IncrementUsage(ctx context.Context, id string) (int, error)
}
