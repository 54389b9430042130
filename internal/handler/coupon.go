package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

type validateRequest struct {
	Code        string          `json:"code"`
	UserID      string          `json:"userId"`
	OrderAmount decimal.Decimal `json:"orderAmount"`
}

type validationResponse struct {
	Valid          bool     `json:"valid"`
	DiscountType   string   `json:"discountType,omitempty"`
	DiscountValue  float64  `json:"discountValue,omitempty"`
	Discount       float64  `json:"discount"`
	FinalAmount    float64  `json:"finalAmount"`
	UserUsageLimit int      `json:"userUsageLimit,omitempty"`
	Reasons        []string `json:"reasons"`
}

// ValidateCoupon evaluates a coupon against an order amount and user without
// side effects. Valid results return 200; business-rule rejections return
// 422 with the complete reasons list.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.coupons.Validate(r.Context(), req.Code, req.UserID, req.OrderAmount)
	if mapDomainError(w, r, err) {
		return
	}

	resp := validationResponse{
		Valid:   res.Valid,
		Reasons: res.Reasons,
	}
	if resp.Reasons == nil {
		resp.Reasons = []string{}
	}

	if !res.Valid {
		writeJSON(w, r, http.StatusUnprocessableEntity, resp)
		return
	}

	resp.DiscountType = string(res.DiscountType)
	resp.DiscountValue = res.DiscountValue.InexactFloat64()
	resp.Discount = res.Discount.InexactFloat64()
	resp.FinalAmount = res.FinalAmount.InexactFloat64()
	resp.UserUsageLimit = res.UserUsageLimit
	writeJSON(w, r, http.StatusOK, resp)
}

type redeemRequest struct {
	Code    string `json:"code"`
	UserID  string `json:"userId"`
	OrderID string `json:"orderId"`
}

type redemptionResponse struct {
	CouponID   string    `json:"couponId"`
	Code       string    `json:"code"`
	UsedCount  int       `json:"usedCount"`
	RedeemedAt time.Time `json:"redeemedAt"`
}

// RedeemCoupon commits a coupon use after an order is finalized. A lost race
// against the usage limit returns 409; the order flow must drop the discount
// in that case rather than retry blindly.
func (h *Handler) RedeemCoupon(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	red, err := h.coupons.Redeem(r.Context(), req.Code, req.UserID, req.OrderID)
	if mapDomainError(w, r, err) {
		return
	}

	writeJSON(w, r, http.StatusOK, redemptionResponse{
		CouponID:   red.CouponID,
		Code:       red.Code,
		UsedCount:  red.UsedCount,
		RedeemedAt: red.RedeemedAt,
	})
}
