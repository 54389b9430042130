//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func adminCouponBody(code string) map[string]any {
	return map[string]any{
		"code":          code,
		"type":          "percentage",
		"value":         15,
		"maxDiscount":   75,
		"minOrderValue": 120,
		"startDate":     "2025-01-01T00:00:00Z",
		"expiryDate":    "2030-01-01T00:00:00Z",
	}
}

func TestAdmin_CreateAndGet(t *testing.T) {
	resp := doPostWithAuth(t, "/api/coupons", adminCouponBody("admintest15"), testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	created := decodeJSON[couponResponse](t, resp)
	if created.Code != "ADMINTEST15" {
		t.Errorf("code: got %q, want normalized ADMINTEST15", created.Code)
	}
	if created.Status != "active" {
		t.Errorf("status: got %q, want active", created.Status)
	}
	if created.UserUsageLimit != 1 {
		t.Errorf("userUsageLimit: got %d, want default 1", created.UserUsageLimit)
	}

	get := doGetWithAuth(t, "/api/coupons/"+created.ID)
	defer get.Body.Close()
	if get.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", get.StatusCode)
	}

	fetched := decodeJSON[couponResponse](t, get)
	if fetched.Code != created.Code {
		t.Errorf("fetched code: got %q, want %q", fetched.Code, created.Code)
	}
}

func TestAdmin_DuplicateCode(t *testing.T) {
	resp := doPostWithAuth(t, "/api/coupons", adminCouponBody("DUPETEST"), testAPIKey)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	// Differs only in case; codes are canonicalized before the uniqueness check.
	resp = doPostWithAuth(t, "/api/coupons", adminCouponBody("dupetest"), testAPIKey)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestAdmin_InvalidPayload(t *testing.T) {
	body := adminCouponBody("BADVALUE")
	body["value"] = 150 // percentage over 100

	resp := doPostWithAuth(t, "/api/coupons", body, testAPIKey)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAdmin_UpdateCoupon(t *testing.T) {
	resp := doPostWithAuth(t, "/api/coupons", adminCouponBody("UPDATEME"), testAPIKey)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	created := decodeJSON[couponResponse](t, resp)
	resp.Body.Close()

	update := doRequest(t, http.MethodPut, "/api/coupons/"+created.ID, map[string]any{
		"value": 30,
	}, testAPIKey)
	defer update.Body.Close()
	if update.StatusCode != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", update.StatusCode)
	}

	updated := decodeJSON[couponResponse](t, update)
	if updated.Value != 30 {
		t.Errorf("value: got %v, want 30", updated.Value)
	}
	if updated.MaxDiscount != 75 {
		t.Errorf("maxDiscount changed: got %v, want 75", updated.MaxDiscount)
	}
}

func TestAdmin_StatusToggle(t *testing.T) {
	resp := doPostWithAuth(t, "/api/coupons", adminCouponBody("TOGGLEME"), testAPIKey)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	created := decodeJSON[couponResponse](t, resp)
	resp.Body.Close()

	patch := doRequest(t, http.MethodPatch, "/api/coupons/"+created.ID+"/status", map[string]any{
		"status": "inactive",
	}, testAPIKey)
	if patch.StatusCode != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d", patch.StatusCode)
	}
	patched := decodeJSON[couponResponse](t, patch)
	patch.Body.Close()
	if patched.Status != "inactive" {
		t.Errorf("status: got %q, want inactive", patched.Status)
	}

	// A disabled coupon is rejected at validation time.
	validate := validateRequest{Code: "TOGGLEME", OrderAmount: 500}
	resp = doPostWithAuth(t, "/api/coupons/validate", validate, testAPIKey)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("validate: expected 422, got %d", resp.StatusCode)
	}
}

func TestAdmin_DeleteCoupon(t *testing.T) {
	resp := doPostWithAuth(t, "/api/coupons", adminCouponBody("DELETEME"), testAPIKey)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	created := decodeJSON[couponResponse](t, resp)
	resp.Body.Close()

	del := doRequest(t, http.MethodDelete, "/api/coupons/"+created.ID, nil, testAPIKey)
	del.Body.Close()
	if del.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", del.StatusCode)
	}

	get := doGetWithAuth(t, "/api/coupons/"+created.ID)
	defer get.Body.Close()
	if get.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", get.StatusCode)
	}
}

func TestAdmin_ListFilters(t *testing.T) {
	resp := doGetWithAuth(t, "/api/coupons?status=active&limit=100")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	list := decodeJSON[listCouponsResponse](t, resp)
	if list.Total == 0 {
		t.Fatal("expected at least one active coupon")
	}
	for _, c := range list.Coupons {
		if c.Status != "active" {
			t.Errorf("coupon %s: status %q leaked through active filter", c.Code, c.Status)
		}
	}
}
