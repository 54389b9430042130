package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitacart/coupon-service/internal/domain/coupon"
)

var (
	testNow    = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	testPast   = testNow.Add(-30 * 24 * time.Hour)
	testFuture = testNow.Add(30 * 24 * time.Hour)
)

// memStore is an in-memory coupon.Store for handler tests.
type memStore struct {
	mu   sync.Mutex
	byID map[string]*coupon.Coupon
}

func newMemStore(coupons ...*coupon.Coupon) *memStore {
	s := &memStore{byID: make(map[string]*coupon.Coupon)}
	for _, c := range coupons {
		s.byID[c.ID] = c
	}
	return s
}

func (m *memStore) Create(_ context.Context, c *coupon.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Code == c.Code {
			return coupon.ErrDuplicateCode
		}
	}
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*coupon.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byID {
		if c.Code == coupon.NormalizeCode(code) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, coupon.ErrNotFound
}

func (m *memStore) Update(_ context.Context, c *coupon.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[c.ID]; !ok {
		return coupon.ErrNotFound
	}
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *memStore) SetStatus(_ context.Context, id string, status coupon.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return coupon.ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return coupon.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memStore) List(_ context.Context, f coupon.ListFilter) (*coupon.ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := &coupon.ListResult{Pages: 1}
	for _, c := range m.byID {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		res.Coupons = append(res.Coupons, *c)
	}
	res.Total = len(res.Coupons)
	return res, nil
}

func (m *memStore) IncrementUsage(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return 0, coupon.ErrNotFound
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return 0, coupon.ErrUsageLimitExceeded
	}
	c.UsedCount++
	return c.UsedCount, nil
}

type memLedger struct {
	mu      sync.Mutex
	entries []coupon.UsageEntry
}

func (m *memLedger) Record(_ context.Context, e *coupon.UsageEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memLedger) CountForUser(_ context.Context, couponID, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, e := range m.entries {
		if e.CouponID == couponID && e.UserID == userID {
			count++
		}
	}
	return count, nil
}

func testCoupon() *coupon.Coupon {
	return &coupon.Coupon{
		ID:             "c-save10",
		Code:           "SAVE10",
		Type:           coupon.DiscountPercentage,
		Value:          decimal.NewFromInt(10),
		MaxDiscount:    decimal.NewFromInt(50),
		MinOrderValue:  decimal.NewFromInt(100),
		StartsAt:       testPast,
		ExpiresAt:      testFuture,
		UserUsageLimit: 1,
		Status:         coupon.StatusActive,
	}
}

func newTestMux(coupons ...*coupon.Coupon) *http.ServeMux {
	svc := coupon.NewService(newMemStore(coupons...), &memLedger{}).
		WithClock(func() time.Time { return testNow })
	mux := http.NewServeMux()
	NewHandler(svc).Register(mux)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst))
}

func TestValidateCoupon(t *testing.T) {
	t.Run("valid coupon", func(t *testing.T) {
		mux := newTestMux(testCoupon())

		rec := doJSON(t, mux, http.MethodPost, "/api/coupons/validate", map[string]any{
			"code":        "save10",
			"userId":      "u1",
			"orderAmount": 1000,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp validationResponse
		decodeInto(t, rec, &resp)
		assert.True(t, resp.Valid)
		assert.Equal(t, "percentage", resp.DiscountType)
		assert.InDelta(t, 50, resp.Discount, 0.001)
		assert.InDelta(t, 950, resp.FinalAmount, 0.001)
		assert.Empty(t, resp.Reasons)
	})

	t.Run("ineligible coupon returns 422 with all reasons", func(t *testing.T) {
		c := testCoupon()
		c.ExpiresAt = testPast
		mux := newTestMux(c)

		rec := doJSON(t, mux, http.MethodPost, "/api/coupons/validate", map[string]any{
			"code":        "SAVE10",
			"orderAmount": 50,
		})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var resp validationResponse
		decodeInto(t, rec, &resp)
		assert.False(t, resp.Valid)
		assert.Equal(t, []string{
			"Coupon expired",
			"Minimum order value is 100",
		}, resp.Reasons)
	})

	t.Run("unknown code returns 404", func(t *testing.T) {
		mux := newTestMux()

		rec := doJSON(t, mux, http.MethodPost, "/api/coupons/validate", map[string]any{
			"code":        "BOGUS",
			"orderAmount": 100,
		})
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing code returns 400", func(t *testing.T) {
		mux := newTestMux()

		rec := doJSON(t, mux, http.MethodPost, "/api/coupons/validate", map[string]any{
			"orderAmount": 100,
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown body field returns 400", func(t *testing.T) {
		mux := newTestMux(testCoupon())

		rec := doJSON(t, mux, http.MethodPost, "/api/coupons/validate", map[string]any{
			"code":   "SAVE10",
			"amount": 100,
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRedeemCoupon(t *testing.T) {
	t.Run("redeems and reports the new count", func(t *testing.T) {
		mux := newTestMux(testCoupon())

		rec := doJSON(t, mux, http.MethodPost, "/api/coupons/redeem", map[string]any{
			"code":    "SAVE10",
			"userId":  "u1",
			"orderId": "order-1",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp redemptionResponse
		decodeInto(t, rec, &resp)
		assert.Equal(t, "SAVE10", resp.Code)
		assert.Equal(t, 1, resp.UsedCount)
	})

	t.Run("exhausted coupon returns 409", func(t *testing.T) {
		c := testCoupon()
		c.UsageLimit = 1
		c.UsedCount = 1
		mux := newTestMux(c)

		rec := doJSON(t, mux, http.MethodPost, "/api/coupons/redeem", map[string]any{
			"code":    "SAVE10",
			"orderId": "order-1",
		})
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown code returns 404", func(t *testing.T) {
		mux := newTestMux()

		rec := doJSON(t, mux, http.MethodPost, "/api/coupons/redeem", map[string]any{
			"code":    "BOGUS",
			"orderId": "order-1",
		})
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCouponCRUD(t *testing.T) {
	createBody := map[string]any{
		"code":          "spring20",
		"type":          "percentage",
		"value":         20,
		"minOrderValue": 150,
		"startDate":     testPast.Format(time.RFC3339),
		"expiryDate":    testFuture.Format(time.RFC3339),
	}

	t.Run("create applies defaults", func(t *testing.T) {
		mux := newTestMux()

		rec := doJSON(t, mux, http.MethodPost, "/api/coupons", createBody)
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp couponResponse
		decodeInto(t, rec, &resp)
		assert.NotEmpty(t, resp.ID)
		assert.Equal(t, "SPRING20", resp.Code)
		assert.Equal(t, "active", resp.Status)
		assert.Equal(t, 1, resp.UserUsageLimit)
		assert.NotNil(t, resp.ApplicableUsers)
	})

	t.Run("duplicate code returns 409", func(t *testing.T) {
		mux := newTestMux(testCoupon())

		body := map[string]any{}
		for k, v := range createBody {
			body[k] = v
		}
		body["code"] = "save10"

		rec := doJSON(t, mux, http.MethodPost, "/api/coupons", body)
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("invalid payload returns 400", func(t *testing.T) {
		mux := newTestMux()

		body := map[string]any{}
		for k, v := range createBody {
			body[k] = v
		}
		body["value"] = -5

		rec := doJSON(t, mux, http.MethodPost, "/api/coupons", body)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get by id", func(t *testing.T) {
		mux := newTestMux(testCoupon())

		rec := doJSON(t, mux, http.MethodGet, "/api/coupons/c-save10", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp couponResponse
		decodeInto(t, rec, &resp)
		assert.Equal(t, "SAVE10", resp.Code)

		rec = doJSON(t, mux, http.MethodGet, "/api/coupons/missing", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("partial update", func(t *testing.T) {
		mux := newTestMux(testCoupon())

		rec := doJSON(t, mux, http.MethodPut, "/api/coupons/c-save10", map[string]any{
			"value": 25,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp couponResponse
		decodeInto(t, rec, &resp)
		assert.InDelta(t, 25, resp.Value, 0.001)
		assert.Equal(t, "SAVE10", resp.Code)
		assert.InDelta(t, 50, resp.MaxDiscount, 0.001)
	})

	t.Run("delete", func(t *testing.T) {
		mux := newTestMux(testCoupon())

		rec := doJSON(t, mux, http.MethodDelete, "/api/coupons/c-save10", nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, mux, http.MethodDelete, "/api/coupons/c-save10", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("status toggle", func(t *testing.T) {
		mux := newTestMux(testCoupon())

		rec := doJSON(t, mux, http.MethodPatch, "/api/coupons/c-save10/status", map[string]any{
			"status": "inactive",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp couponResponse
		decodeInto(t, rec, &resp)
		assert.Equal(t, "inactive", resp.Status)

		rec = doJSON(t, mux, http.MethodPatch, "/api/coupons/c-save10/status", map[string]any{
			"status": "archived",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list filters by status", func(t *testing.T) {
		inactive := testCoupon()
		inactive.ID = "c-retired"
		inactive.Code = "RETIRED5"
		inactive.Status = coupon.StatusInactive
		mux := newTestMux(testCoupon(), inactive)

		rec := doJSON(t, mux, http.MethodGet, "/api/coupons?status=active", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp listCouponsResponse
		decodeInto(t, rec, &resp)
		require.Equal(t, 1, resp.Total)
		assert.Equal(t, "SAVE10", resp.Coupons[0].Code)
	})
}
