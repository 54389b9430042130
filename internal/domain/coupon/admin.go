package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Create validates the payload, normalizes the code, and persists a new
// coupon. Status defaults to active and the per-user limit to 1 when the
// payload leaves them unset.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Coupon, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	status := p.Status
	if status == "" {
		status = StatusActive
	}
	userLimit := p.UserUsageLimit
	if userLimit == 0 {
		userLimit = 1
	}

	c := &Coupon{
		ID:              uuid.New().String(),
		Code:            NormalizeCode(p.Code),
		Type:            p.Type,
		Value:           p.Value,
		MaxDiscount:     p.MaxDiscount,
		MinOrderValue:   p.MinOrderValue,
		StartsAt:        p.StartsAt,
		ExpiresAt:       p.ExpiresAt,
		UsageLimit:      p.UsageLimit,
		UserUsageLimit:  userLimit,
		ApplicableUsers: p.ApplicableUsers,
		Status:          status,
	}

	if err := s.store.Create(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			return nil, ErrDuplicateCode
		}
		return nil, errors.Wrap(err, "create coupon")
	}
	return c, nil
}

// Get returns the coupon with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Coupon, error) {
	return s.store.GetByID(ctx, id)
}

// Update applies a partial patch. A patched code is re-normalized and
// uniqueness is re-checked on persist.
func (s *Service) Update(ctx context.Context, id string, p UpdateParams) (*Coupon, error) {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p.apply(c)
	if err := p.validate(c); err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			return nil, ErrDuplicateCode
		}
		return nil, errors.Wrap(err, "update coupon")
	}
	return c, nil
}

// SetStatus toggles a coupon between active and inactive. Soft-disabling via
// inactive is the preferred retirement path; see Delete.
func (s *Service) SetStatus(ctx context.Context, id string, status Status) (*Coupon, error) {
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	if err := s.store.SetStatus(ctx, id, status); err != nil {
		return nil, err
	}
	return s.store.GetByID(ctx, id)
}

// Delete removes a coupon permanently. Historical orders referencing the
// code keep their stored totals; prefer SetStatus(inactive) when history
// must stay resolvable.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// List returns one page of coupons matching the filter, newest first.
func (s *Service) List(ctx context.Context, f ListFilter) (*ListResult, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.store.List(ctx, f)
}

// UsageForUser exposes the per-user redemption count for callers that want
// to pre-check rule state before validation.
func (s *Service) UsageForUser(ctx context.Context, couponID, userID string) (int, error) {
	return s.ledger.CountForUser(ctx, couponID, userID)
}

// WithClock replaces the service clock. Tests use it for deterministic
// validity windows.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}
