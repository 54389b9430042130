package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vitacart/coupon-service/internal/domain/coupon"
)

// couponResponse is the wire shape of a coupon for the admin dashboard.
type couponResponse struct {
	ID              string    `json:"id"`
	Code            string    `json:"code"`
	Type            string    `json:"type"`
	Value           float64   `json:"value"`
	MaxDiscount     float64   `json:"maxDiscount"`
	MinOrderValue   float64   `json:"minOrderValue"`
	StartDate       time.Time `json:"startDate"`
	ExpiryDate      time.Time `json:"expiryDate"`
	UsageLimit      int       `json:"usageLimit"`
	UsedCount       int       `json:"usedCount"`
	UserUsageLimit  int       `json:"userUsageLimit"`
	ApplicableUsers []string  `json:"applicableUsers"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func toCouponResponse(c *coupon.Coupon) couponResponse {
	users := c.ApplicableUsers
	if users == nil {
		users = []string{}
	}
	return couponResponse{
		ID:              c.ID,
		Code:            c.Code,
		Type:            string(c.Type),
		Value:           c.Value.InexactFloat64(),
		MaxDiscount:     c.MaxDiscount.InexactFloat64(),
		MinOrderValue:   c.MinOrderValue.InexactFloat64(),
		StartDate:       c.StartsAt,
		ExpiryDate:      c.ExpiresAt,
		UsageLimit:      c.UsageLimit,
		UsedCount:       c.UsedCount,
		UserUsageLimit:  c.UserUsageLimit,
		ApplicableUsers: users,
		Status:          string(c.Status),
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

type createCouponRequest struct {
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

// CreateCoupon persists a new coupon from a typed admin payload.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c, err := h.coupons.Create(r.Context(), coupon.CreateParams{
		Code:            req.Code,
		Type:            coupon.DiscountType(req.Type),
		Value:           req.Value,
		MaxDiscount:     req.MaxDiscount,
		MinOrderValue:   req.MinOrderValue,
		StartsAt:        req.StartDate,
		ExpiresAt:       req.ExpiryDate,
		UsageLimit:      req.UsageLimit,
		UserUsageLimit:  req.UserUsageLimit,
		ApplicableUsers: req.ApplicableUsers,
		Status:          coupon.Status(req.Status),
	})
	if mapDomainError(w, r, err) {
		return
	}

	writeJSON(w, r, http.StatusCreated, toCouponResponse(c))
}

// GetCoupon returns a single coupon by id.
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.Get(r.Context(), r.PathValue("id"))
	if mapDomainError(w, r, err) {
		return
	}
	writeJSON(w, r, http.StatusOK, toCouponResponse(c))
}

type updateCouponRequest struct {
	Code            *string          `json:"code"`
	Type            *string          `json:"type"`
	Value           *decimal.Decimal `json:"value"`
	MaxDiscount     *decimal.Decimal `json:"maxDiscount"`
	MinOrderValue   *decimal.Decimal `json:"minOrderValue"`
	StartDate       *time.Time       `json:"startDate"`
	ExpiryDate      *time.Time       `json:"expiryDate"`
	UsageLimit      *int             `json:"usageLimit"`
	UserUsageLimit  *int             `json:"userUsageLimit"`
	ApplicableUsers *[]string        `json:"applicableUsers"`
	Status          *string          `json:"status"`
}

// UpdateCoupon applies a partial patch to an existing coupon.
func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	var req updateCouponRequest
	if !decodeBody(w, r, &req) {
		return
	}

	params := coupon.UpdateParams{
		Code:            req.Code,
		Value:           req.Value,
		MaxDiscount:     req.MaxDiscount,
		MinOrderValue:   req.MinOrderValue,
		StartsAt:        req.StartDate,
		ExpiresAt:       req.ExpiryDate,
		UsageLimit:      req.UsageLimit,
		UserUsageLimit:  req.UserUsageLimit,
		ApplicableUsers: req.ApplicableUsers,
	}
	if req.Type != nil {
		t := coupon.DiscountType(*req.Type)
		params.Type = &t
	}
	if req.Status != nil {
		st := coupon.Status(*req.Status)
		params.Status = &st
	}

	c, err := h.coupons.Update(r.Context(), r.PathValue("id"), params)
	if mapDomainError(w, r, err) {
		return
	}
	writeJSON(w, r, http.StatusOK, toCouponResponse(c))
}

// DeleteCoupon removes a coupon permanently.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if mapDomainError(w, r, h.coupons.Delete(r.Context(), r.PathValue("id"))) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// SetCouponStatus toggles a coupon between active and inactive.
func (h *Handler) SetCouponStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c, err := h.coupons.SetStatus(r.Context(), r.PathValue("id"), coupon.Status(req.Status))
	if mapDomainError(w, r, err) {
		return
	}
	writeJSON(w, r, http.StatusOK, toCouponResponse(c))
}

type listCouponsResponse struct {
	Coupons []couponResponse `json:"coupons"`
	Total   int              `json:"total"`
	Pages   int              `json:"pages"`
}

// ListCoupons returns one page of coupons, newest first. Filters: status,
// type, free-text code match, creation-date range.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := coupon.ListFilter{
		Status: coupon.Status(q.Get("status")),
		Type:   coupon.DiscountType(q.Get("type")),
		Code:   q.Get("code"),
		Limit:  queryInt(q.Get("limit"), 20),
		Offset: queryInt(q.Get("offset"), 0),
	}
	if v := q.Get("createdFrom"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "createdFrom must be RFC 3339")
			return
		}
		f.CreatedFrom = t
	}
	if v := q.Get("createdTo"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "createdTo must be RFC 3339")
			return
		}
		f.CreatedTo = t
	}

	res, err := h.coupons.List(r.Context(), f)
	if mapDomainError(w, r, err) {
		return
	}

	resp := listCouponsResponse{
		Coupons: make([]couponResponse, len(res.Coupons)),
		Total:   res.Total,
		Pages:   res.Pages,
	}
	for i := range res.Coupons {
		resp.Coupons[i] = toCouponResponse(&res.Coupons[i])
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
