// Command seed-db loads demo coupons from a JSON file and registers an
// admin API key, hashed with the configured pepper. Intended for local
// development and integration test environments.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vitacart/coupon-service/internal/domain/coupon"
	"github.com/vitacart/coupon-service/internal/storage/postgres"
)

type couponJSON struct {
	Code            string          `json:"code"`
	Type            string          `json:"type"`
	Value           decimal.Decimal `json:"value"`
	MaxDiscount     decimal.Decimal `json:"maxDiscount"`
	MinOrderValue   decimal.Decimal `json:"minOrderValue"`
	StartDate       time.Time       `json:"startDate"`
	ExpiryDate      time.Time       `json:"expiryDate"`
	UsageLimit      int             `json:"usageLimit"`
	UserUsageLimit  int             `json:"userUsageLimit"`
	ApplicableUsers []string        `json:"applicableUsers"`
	Status          string          `json:"status"`
}

const upsertCouponSQL = `INSERT INTO coupons (id, code, discount_type, value, max_discount,
	min_order_value, starts_at, expires_at, usage_limit, user_usage_limit,
	applicable_users, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT ((UPPER(code))) DO UPDATE SET
		discount_type = EXCLUDED.discount_type,
		value = EXCLUDED.value,
		max_discount = EXCLUDED.max_discount,
		min_order_value = EXCLUDED.min_order_value,
		starts_at = EXCLUDED.starts_at,
		expires_at = EXCLUDED.expires_at,
		usage_limit = EXCLUDED.usage_limit,
		user_usage_limit = EXCLUDED.user_usage_limit,
		applicable_users = EXCLUDED.applicable_users,
		status = EXCLUDED.status,
		updated_at = now()`

const upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, name, scopes, active)
	VALUES ($1, $2, $3, $4, TRUE)
	ON CONFLICT (key_hash) DO UPDATE SET active = TRUE`

func main() {
	var (
		databaseURL  string
		couponsFile  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&couponsFile, "coupons-file", "db/seed/coupons.json", "path to coupons JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or COUPON_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or COUPON_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("COUPON_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or COUPON_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("COUPON_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, couponsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, couponsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCoupons(ctx, pool, couponsFile); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}

	var coupons []couponJSON
	if err := json.Unmarshal(data, &coupons); err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}

	for _, c := range coupons {
		users := c.ApplicableUsers
		if users == nil {
			users = []string{}
		}
		userLimit := c.UserUsageLimit
		if userLimit == 0 {
			userLimit = 1
		}
		status := c.Status
		if status == "" {
			status = string(coupon.StatusActive)
		}

		_, err := pool.Exec(ctx, upsertCouponSQL,
			uuid.New().String(), coupon.NormalizeCode(c.Code), c.Type, c.Value,
			c.MaxDiscount, c.MinOrderValue, c.StartDate, c.ExpiryDate,
			c.UsageLimit, userLimit, users, status,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}
	}

	slog.Info("coupons seeded", slog.Int("count", len(coupons)))
	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	hash := hex.EncodeToString(mac.Sum(nil))

	_, err := pool.Exec(ctx, upsertAPIKeySQL,
		uuid.New().String(), hash, "seed-admin", []string{"admin"},
	)
	if err != nil {
		return errors.Wrap(err, "upsert api key")
	}

	slog.Info("api key seeded", slog.String("name", "seed-admin"))
	return nil
}
