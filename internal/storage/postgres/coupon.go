package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitacart/coupon-service/internal/domain/coupon"
)

const couponColumns = `id, code, discount_type, value, max_discount, min_order_value,
	starts_at, expires_at, usage_limit, used_count, user_usage_limit,
	applicable_users, status, created_at, updated_at`

const (
	insertCouponSQL = `INSERT INTO coupons (id, code, discount_type, value, max_discount,
		min_order_value, starts_at, expires_at, usage_limit, user_usage_limit,
		applicable_users, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	getCouponByIDSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE UPPER(code) = UPPER($1)`

	updateCouponSQL = `UPDATE coupons SET code = $2, discount_type = $3, value = $4,
		max_discount = $5, min_order_value = $6, starts_at = $7, expires_at = $8,
		usage_limit = $9, user_usage_limit = $10, applicable_users = $11,
		status = $12, updated_at = now()
		WHERE id = $1`

	setCouponStatusSQL = `UPDATE coupons SET status = $2, updated_at = now() WHERE id = $1`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`

	// The increment applies only while the counter is still below the limit
	// (or the limit is unset), so concurrent redemptions cannot jointly
	// overshoot it.
	incrementCouponUsageSQL = `UPDATE coupons
		SET used_count = used_count + 1, updated_at = now()
		WHERE id = $1 AND (usage_limit = 0 OR used_count < usage_limit)
		RETURNING used_count`
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaches.
const uniqueViolation = "23505"

var _ coupon.Store = (*CouponStore)(nil)

// CouponStore implements coupon.Store backed by PostgreSQL.
type CouponStore struct {
	pool *pgxpool.Pool
}

// NewCouponStore returns a CouponStore that uses the given pool.
func NewCouponStore(pool *pgxpool.Pool) *CouponStore {
	return &CouponStore{pool: pool}
}

// Create persists a new coupon. A case-insensitive code collision maps to
// coupon.ErrDuplicateCode via the unique index on UPPER(code).
func (s *CouponStore) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := s.pool.Exec(ctx, insertCouponSQL,
		c.ID, c.Code, string(c.Type), c.Value, c.MaxDiscount, c.MinOrderValue,
		c.StartsAt, c.ExpiresAt, c.UsageLimit, c.UserUsageLimit,
		c.ApplicableUsers, string(c.Status),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// GetByID looks up a coupon by its id.
// Returns coupon.ErrNotFound when no row matches.
func (s *CouponStore) GetByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	rows, err := s.pool.Query(ctx, getCouponByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting coupon %q: %w", id, err)
	}
	return collectCoupon(rows, id)
}

// FindByCode looks up a coupon by its code, case-insensitively.
// Returns coupon.ErrNotFound when no row matches.
func (s *CouponStore) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := s.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return collectCoupon(rows, code)
}

// Update persists all mutable fields of the coupon. Code uniqueness is
// re-checked by the same index as Create.
func (s *CouponStore) Update(ctx context.Context, c *coupon.Coupon) error {
	tag, err := s.pool.Exec(ctx, updateCouponSQL,
		c.ID, c.Code, string(c.Type), c.Value, c.MaxDiscount, c.MinOrderValue,
		c.StartsAt, c.ExpiresAt, c.UsageLimit, c.UserUsageLimit,
		c.ApplicableUsers, string(c.Status),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("updating coupon %q: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// SetStatus updates only the lifecycle state.
func (s *CouponStore) SetStatus(ctx context.Context, id string, status coupon.Status) error {
	tag, err := s.pool.Exec(ctx, setCouponStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("setting status for coupon %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Delete removes the coupon row permanently.
func (s *CouponStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// IncrementUsage performs the atomic conditional usage increment. The guard
// lives inside the single UPDATE, so there is no read-then-write window.
// Returns coupon.ErrUsageLimitExceeded when the condition cannot apply for
// an existing coupon.
func (s *CouponStore) IncrementUsage(ctx context.Context, id string) (int, error) {
	var used int
	err := s.pool.QueryRow(ctx, incrementCouponUsageSQL, id).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the coupon vanished or the limit is reached; disambiguate.
			if _, getErr := s.GetByID(ctx, id); getErr != nil {
				return 0, getErr
			}
			return 0, coupon.ErrUsageLimitExceeded
		}
		return 0, fmt.Errorf("incrementing usage for coupon %q: %w", id, err)
	}
	return used, nil
}

// List returns one page of coupons matching the filter, newest first, plus
// the total row count and page count for the caller's pagination.
func (s *CouponStore) List(ctx context.Context, f coupon.ListFilter) (*coupon.ListResult, error) {
	where, args := buildCouponFilter(f)

	var total int
	countSQL := "SELECT COUNT(*) FROM coupons" + where
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting coupons: %w", err)
	}

	pageSQL := fmt.Sprintf(
		"SELECT %s FROM coupons%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		couponColumns, where, len(args)+1, len(args)+2,
	)
	rows, err := s.pool.Query(ctx, pageSQL, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}

	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}

	pages := 0
	if f.Limit > 0 {
		pages = (total + f.Limit - 1) / f.Limit
	}

	return &coupon.ListResult{
		Coupons: coupons,
		Total:   total,
		Pages:   pages,
	}, nil
}

// buildCouponFilter assembles the WHERE clause and positional args for List.
func buildCouponFilter(f coupon.ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Type != "" {
		add("discount_type = $%d", string(f.Type))
	}
	if f.Code != "" {
		add("code LIKE '%%' || UPPER($%d) || '%%'", f.Code)
	}
	if !f.CreatedFrom.IsZero() {
		add("created_at >= $%d", f.CreatedFrom)
	}
	if !f.CreatedTo.IsZero() {
		add("created_at <= $%d", f.CreatedTo)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func collectCoupon(rows pgx.Rows, key string) (*coupon.Coupon, error) {
	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("scanning coupon %q: %w", key, err)
	}
	return &c, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		status       string
	)
	err := row.Scan(
		&c.ID, &c.Code, &discountType, &c.Value, &c.MaxDiscount, &c.MinOrderValue,
		&c.StartsAt, &c.ExpiresAt, &c.UsageLimit, &c.UsedCount, &c.UserUsageLimit,
		&c.ApplicableUsers, &status, &c.CreatedAt, &c.UpdatedAt,
	)
	c.Type = coupon.DiscountType(discountType)
	c.Status = coupon.Status(status)
	return c, err
}
