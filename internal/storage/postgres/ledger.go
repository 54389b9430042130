package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitacart/coupon-service/internal/domain/coupon"
)

const (
	insertUsageSQL = `INSERT INTO coupon_usages (id, coupon_id, user_id, order_id, redeemed_at)
		VALUES ($1, $2, $3, $4, $5)`

	countUserUsageSQL = `SELECT COUNT(*) FROM coupon_usages
		WHERE coupon_id = $1 AND user_id = $2`
)

var _ coupon.Ledger = (*UsageLedger)(nil)

// UsageLedger implements coupon.Ledger backed by PostgreSQL. Rows are
// append-only; nothing updates or deletes them.
type UsageLedger struct {
	pool *pgxpool.Pool
}

// NewUsageLedger returns a UsageLedger that uses the given pool.
func NewUsageLedger(pool *pgxpool.Pool) *UsageLedger {
	return &UsageLedger{pool: pool}
}

// Record appends a redemption entry.
func (l *UsageLedger) Record(ctx context.Context, e *coupon.UsageEntry) error {
	_, err := l.pool.Exec(ctx, insertUsageSQL,
		e.ID, e.CouponID, e.UserID, e.OrderID, e.RedeemedAt,
	)
	if err != nil {
		return fmt.Errorf("recording usage for coupon %q: %w", e.CouponID, err)
	}
	return nil
}

// CountForUser returns how many times the user has redeemed the coupon.
func (l *UsageLedger) CountForUser(ctx context.Context, couponID, userID string) (int, error) {
	var count int
	err := l.pool.QueryRow(ctx, countUserUsageSQL, couponID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting usage for coupon %q user %q: %w", couponID, userID, err)
	}
	return count, nil
}
