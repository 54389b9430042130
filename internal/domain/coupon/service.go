package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidInput is returned for malformed consumer requests (missing code,
// negative order amount). Distinct from business-rule rejections, which are
// reported as Result.Reasons.
var ErrInvalidInput = errors.New("invalid input")

// Redemption is the outcome of committing a coupon use against an order.
type Redemption struct {
	CouponID   string
	Code       string
	UsedCount  int
	RedeemedAt time.Time
}

// Service is the boundary the order-creation flow and the admin dashboard
// consume. Validation is read-only; Redeem is the sole mutating path for
// usage counters.
type Service struct {
	store  Store
	ledger Ledger
	now    func() time.Time
}

// NewService creates a Service with the required persistence dependencies.
func NewService(store Store, ledger Ledger) *Service {
	return &Service{
		store:  store,
		ledger: ledger,
		now:    time.Now,
	}
}

// Validate resolves the code and evaluates all eligibility rules against the
// current time and the usage ledger. Business-rule rejections come back as a
// Result with Valid=false and the complete reasons list; only malformed
// input or store failures are errors.
func (s *Service) Validate(ctx context.Context, code, userID string, orderAmount decimal.Decimal) (*Result, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, errors.Wrap(ErrInvalidInput, "coupon code is required")
	}
	if orderAmount.IsNegative() {
		return nil, errors.Wrap(ErrInvalidInput, "order amount must not be negative")
	}

	c, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	userUsed := 0
	if userID != "" {
		userUsed, err = s.ledger.CountForUser(ctx, c.ID, userID)
		if err != nil {
			return nil, errors.Wrap(err, "count user redemptions")
		}
	}

	res := Evaluate(c, orderAmount, userID, userUsed, s.now())
	return &res, nil
}

// Redeem commits a coupon use once the referencing order is finalized. The
// usage counter increment is a single atomic conditional update, so two
// concurrent redemptions can never jointly overshoot the usage limit; the
// loser receives ErrUsageLimitExceeded. A ledger entry is appended on
// success for per-user limit enforcement.
func (s *Service) Redeem(ctx context.Context, code, userID, orderID string) (*Redemption, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, errors.Wrap(ErrInvalidInput, "coupon code is required")
	}

	c, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	used, err := s.store.IncrementUsage(ctx, c.ID)
	if err != nil {
		if errors.Is(err, ErrUsageLimitExceeded) {
			return nil, ErrUsageLimitExceeded
		}
		return nil, errors.Wrap(err, "increment coupon usage")
	}

	redeemedAt := s.now()
	if userID != "" {
		entry := &UsageEntry{
			ID:         uuid.New().String(),
			CouponID:   c.ID,
			UserID:     userID,
			OrderID:    orderID,
			RedeemedAt: redeemedAt,
		}
		if err := s.ledger.Record(ctx, entry); err != nil {
			return nil, errors.Wrap(err, "record usage entry")
		}
	}

	return &Redemption{
		CouponID:   c.ID,
		Code:       c.Code,
		UsedCount:  used,
		RedeemedAt: redeemedAt,
	}, nil
}
