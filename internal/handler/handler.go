// Package handler exposes the coupon service over HTTP: the validate/redeem
// boundary consumed by the order-creation flow, and the administrative CRUD
// surface consumed by the dashboard.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/vitacart/coupon-service/internal/domain/coupon"
)

// Handler routes coupon API requests to the domain service.
type Handler struct {
	coupons *coupon.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(coupons *coupon.Service) *Handler {
	return &Handler{coupons: coupons}
}

// Register mounts all API routes on the given mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/coupons/validate", h.ValidateCoupon)
	mux.HandleFunc("POST /api/coupons/redeem", h.RedeemCoupon)

	mux.HandleFunc("POST /api/coupons", h.CreateCoupon)
	mux.HandleFunc("GET /api/coupons", h.ListCoupons)
	mux.HandleFunc("GET /api/coupons/{id}", h.GetCoupon)
	mux.HandleFunc("PUT /api/coupons/{id}", h.UpdateCoupon)
	mux.HandleFunc("DELETE /api/coupons/{id}", h.DeleteCoupon)
	mux.HandleFunc("PATCH /api/coupons/{id}/status", h.SetCouponStatus)
}

// errorResponse is the uniform error body for the API.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zctx.From(r.Context()).Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Code: status, Message: msg})
}

// decodeBody decodes a JSON request body, rejecting unknown fields. It
// writes a 400 response and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body: "+err.Error())
		return false
	}
	return true
}

// mapDomainError converts domain errors into HTTP responses. Returns true
// when the error was handled.
func mapDomainError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, coupon.ErrInvalidInput), errors.Is(err, coupon.ErrInvalidPayload),
		errors.Is(err, coupon.ErrInvalidStatus):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, coupon.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "coupon not found")
	case errors.Is(err, coupon.ErrDuplicateCode):
		writeError(w, r, http.StatusConflict, "coupon code already exists")
	case errors.Is(err, coupon.ErrUsageLimitExceeded):
		writeError(w, r, http.StatusConflict, "coupon usage limit exceeded")
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
	return true
}
