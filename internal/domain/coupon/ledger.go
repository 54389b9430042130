package coupon

import (
	"context"
	"time"
)

// UsageEntry records a single successful redemption: who redeemed which
// coupon against which order, and when. Entries are append-only.
type UsageEntry struct {
	ID         string
	CouponID   string
	UserID     string
	OrderID    string
	RedeemedAt time.Time
}

// Ledger is the append-only record of redemptions, queried to enforce
// per-user usage limits.
type Ledger interface {
	Record(ctx context.Context, e *UsageEntry) error
	CountForUser(ctx context.Context, couponID, userID string) (int, error)
}
