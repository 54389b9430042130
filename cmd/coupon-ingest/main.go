// Command coupon-ingest imports promotional code dumps exported by campaign
// tools. Each dump is a gzip file with one code per line; a code is accepted
// only when it appears in at least two of the provided dumps, which filters
// out single-source typos and test exports. Accepted codes are upserted as
// active coupons.
//
// Dumps can hold hundreds of millions of lines, so membership across files
// is tested with per-file bloom filters instead of keeping code sets in
// memory.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/vitacart/coupon-service/internal/domain/coupon"
	"github.com/vitacart/coupon-service/internal/storage/postgres"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	progressEvery = 10_000_000
	minCodeLen    = 4
	maxCodeLen    = 16
)

const upsertCouponSQL = `INSERT INTO coupons (id, code, discount_type, value, max_discount,
	min_order_value, starts_at, expires_at, usage_limit, user_usage_limit, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'active')
	ON CONFLICT ((UPPER(code))) DO UPDATE SET
		discount_type = EXCLUDED.discount_type,
		value = EXCLUDED.value,
		max_discount = EXCLUDED.max_discount,
		min_order_value = EXCLUDED.min_order_value,
		starts_at = EXCLUDED.starts_at,
		expires_at = EXCLUDED.expires_at,
		usage_limit = EXCLUDED.usage_limit,
		user_usage_limit = EXCLUDED.user_usage_limit,
		status = 'active',
		updated_at = now()`

// codeRule describes the discount terms assigned to a known campaign code.
type codeRule struct {
	discountType   coupon.DiscountType
	value          string
	maxDiscount    string
	minOrderValue  string
	usageLimit     int
	userUsageLimit int
}

var codeRules = map[string]codeRule{
	"WELLNESS10": {discountType: coupon.DiscountPercentage, value: "10", maxDiscount: "50", minOrderValue: "100", userUsageLimit: 1},
	"NEWYOU20":   {discountType: coupon.DiscountPercentage, value: "20", maxDiscount: "100", minOrderValue: "250", usageLimit: 5000, userUsageLimit: 1},
	"FIRSTORDER": {discountType: coupon.DiscountFixed, value: "50", minOrderValue: "200", userUsageLimit: 1},
	"VITABOOST":  {discountType: coupon.DiscountPercentage, value: "15", maxDiscount: "75", userUsageLimit: 2},
	"FLAT100":    {discountType: coupon.DiscountFixed, value: "100", minOrderValue: "500", usageLimit: 10000, userUsageLimit: 1},
}

var defaultRule = codeRule{
	discountType:   coupon.DiscountPercentage,
	value:          "10",
	maxDiscount:    "50",
	minOrderValue:  "0",
	userUsageLimit: 1,
}

// fileResult holds candidate codes found in a single file during pass 2.
type fileResult struct {
	candidates map[string]uint
}

func main() {
	var (
		dataDir     string
		databaseURL string
		validDays   int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing campaign codes*.gz dumps")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&validDays, "valid-days", 90, "validity window in days for ingested coupons")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, validDays); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, validDays int) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "codes*.gz"))
	if err != nil {
		return errors.Wrap(err, "glob data dir")
	}
	if len(files) < 2 {
		return errors.Errorf("need at least 2 dump files in %s, found %d", dataDir, len(files))
	}

	// Pass 1: build one bloom filter per file, concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: find codes appearing in 2+ files.
	slog.Info("pass 2: finding confirmed codes")

	validCodes, err := findConfirmedCodes(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find confirmed codes")
	}

	slog.Info("confirmed codes found", slog.Int("count", len(validCodes)))

	if len(validCodes) == 0 {
		slog.Info("no confirmed codes to insert")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := writeCoupons(ctx, pool, validCodes, validDays); err != nil {
		return errors.Wrap(err, "write coupons to database")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(code string) {
			if len(code) >= minCodeLen && len(code) <= maxCodeLen {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress",
						slog.Int("file", idx+1),
						slog.Uint64("codes", count),
					)
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_codes", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findConfirmedCodes re-streams each file and checks codes against OTHER
// files' bloom filters. A code is confirmed when it appears in 2+ files.
func findConfirmedCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge per-file membership bitmasks.
	merged := make(map[string]uint)
	for _, r := range results {
		for code, mask := range r.candidates {
			merged[code] |= mask
		}
	}

	var valid []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			valid = append(valid, code)
		}
	}

	return valid, nil
}

func findCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(code string) {
			if len(code) < minCodeLen || len(code) > maxCodeLen {
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("file", idx+1),
					slog.Uint64("codes", count),
				)
			}

			// Check whether this code appears in any OTHER file's filter.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(code) {
					candidates[code] |= fileBit
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_codes", count),
			slog.Int("candidates", len(candidates)),
		)

		results[idx] = fileResult{candidates: candidates}
		return nil
	}
}

// streamGzFile opens a gzip-compressed file and calls fn for each
// normalized line.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(coupon.NormalizeCode(scanner.Text()))
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writeCoupons upserts all confirmed codes with their discount rules and a
// validity window starting now.
func writeCoupons(ctx context.Context, pool *pgxpool.Pool, codes []string, validDays int) error {
	slog.Info("writing coupons to database", slog.Int("count", len(codes)))

	startsAt := time.Now()
	expiresAt := startsAt.AddDate(0, 0, validDays)

	for i, code := range codes {
		rule, ok := codeRules[code]
		if !ok {
			rule = defaultRule
		}

		value, err := decimal.NewFromString(rule.value)
		if err != nil {
			return errors.Wrapf(err, "parse value for code %s", code)
		}
		maxDiscount := decimal.Zero
		if rule.maxDiscount != "" {
			if maxDiscount, err = decimal.NewFromString(rule.maxDiscount); err != nil {
				return errors.Wrapf(err, "parse max discount for code %s", code)
			}
		}
		minOrder := decimal.Zero
		if rule.minOrderValue != "" {
			if minOrder, err = decimal.NewFromString(rule.minOrderValue); err != nil {
				return errors.Wrapf(err, "parse min order value for code %s", code)
			}
		}

		_, err = pool.Exec(ctx, upsertCouponSQL,
			uuid.New().String(), code, string(rule.discountType), value,
			maxDiscount, minOrder, startsAt, expiresAt,
			rule.usageLimit, rule.userUsageLimit,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", code)
		}

		if (i+1)%100 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}

	return nil
}
