package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sahzadahmad246/perfectceiling/internal/model"
)

func doJSON(t *testing.T, router http.Handler, method, path, authToken string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func createQuotation(t *testing.T, env *testEnv, auth, customerName string) string {
	t.Helper()
	body := map[string]interface{}{
		"customer_name":   customerName,
		"customer_phone":  "+91-9876543210",
		"service_summary": "false ceiling, living room",
		"items": []map[string]interface{}{
			{"description": "POP ceiling 120 sqft", "amount": 48000},
			{"description": "Cove lighting", "amount": 12000},
		},
		"discount": 5000,
	}
	resp := doJSON(t, env.router, http.MethodPost, "/api/v1/quotations", auth, body)
	require.Equal(t, http.StatusOK, resp.Code)

	items, err := env.quotations.List(context.Background(), "", 10, 0)
	require.NoError(t, err)
	for _, q := range items {
		if q.CustomerName == customerName && q.Ctime >= time.Now().Unix()-60 {
			return q.ID
		}
	}
	t.Fatal("created quotation not found")
	return ""
}

func shareQuotation(t *testing.T, env *testEnv, auth, quotationID string) string {
	t.Helper()
	resp := doJSON(t, env.router, http.MethodPost, "/api/v1/quotations/"+quotationID+"/share", auth, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	q, err := env.quotations.GetByID(context.Background(), quotationID)
	require.NoError(t, err)
	require.True(t, q.Sharing.IsShared)
	require.Len(t, q.Sharing.ShareToken, 43)
	return q.Sharing.ShareToken
}

func TestShareEndpoints_RequireAuth(t *testing.T) {
	env, cleanup := setupRouter(t)
	defer cleanup()

	resp := doJSON(t, env.router, http.MethodPost, "/api/v1/quotations", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCreateShare_Idempotent(t *testing.T) {
	env, cleanup := setupRouter(t)
	defer cleanup()
	auth := staffToken(t)

	quotationID := createQuotation(t, env, auth, "Asha Verma "+newSuffix())
	token1 := shareQuotation(t, env, auth, quotationID)
	token2 := shareQuotation(t, env, auth, quotationID)
	require.Equal(t, token1, token2)
}

func TestVerifyFlow(t *testing.T) {
	env, cleanup := setupRouter(t)
	defer cleanup()
	auth := staffToken(t)

	name := "Asha Verma " + newSuffix()
	quotationID := createQuotation(t, env, auth, name)
	shareToken := shareQuotation(t, env, auth, quotationID)
	verifyPath := "/api/v1/public/quotations/" + shareToken + "/verify"

	// Wrong digits are rejected and consume an attempt.
	resp := doJSON(t, env.router, http.MethodPost, verifyPath, "", map[string]string{"phone_digits": "4321"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), `"remaining_attempts":4`)

	// Matching last-four digits unlock the customer projection.
	resp = doJSON(t, env.router, http.MethodPost, verifyPath, "", map[string]string{"phone_digits": "3210"})
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), name)
	require.NotContains(t, resp.Body.String(), "share_token")
	require.NotContains(t, resp.Body.String(), "9876543210")

	q, err := env.quotations.GetByID(context.Background(), quotationID)
	require.NoError(t, err)
	require.Equal(t, int64(1), q.Sharing.AccessCount)
	require.NotZero(t, q.Sharing.LastAccessedAt)
}

func TestVerifyFlow_MalformedInputs(t *testing.T) {
	env, cleanup := setupRouter(t)
	defer cleanup()
	auth := staffToken(t)

	quotationID := createQuotation(t, env, auth, "Asha Verma "+newSuffix())
	shareToken := shareQuotation(t, env, auth, quotationID)

	// Bad token shape fails fast without touching storage.
	resp := doJSON(t, env.router, http.MethodPost, "/api/v1/public/quotations/short/verify", "", map[string]string{"phone_digits": "3210"})
	require.Equal(t, http.StatusBadRequest, resp.Code)

	// Unknown but well-formed token reads as gone, not as never-existed.
	fake := strings.Repeat("A", 43)
	resp = doJSON(t, env.router, http.MethodPost, "/api/v1/public/quotations/"+fake+"/verify", "", map[string]string{"phone_digits": "3210"})
	require.Equal(t, http.StatusNotFound, resp.Code)

	// Non-numeric digits get the specific validation message and count
	// against the budget.
	verifyPath := "/api/v1/public/quotations/" + shareToken + "/verify"
	resp = doJSON(t, env.router, http.MethodPost, verifyPath, "", map[string]string{"phone_digits": "abcd"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), "numeric digits only")

	// The malformed guess against the live link still shows up in the
	// failure trail. The writes are asynchronous.
	time.Sleep(300 * time.Millisecond)
	now := time.Now().Unix()
	records, err := env.accesses.ListRange(context.Background(), now-60, now+1)
	require.NoError(t, err)
	failedRecorded := false
	for _, rec := range records {
		if rec.QuotationID == quotationID && !rec.Successful {
			failedRecorded = true
		}
	}
	require.True(t, failedRecorded, "malformed guess left no access record")

	events, err := env.audits.ListRange(context.Background(), now-60, now+1)
	require.NoError(t, err)
	failureAudited := false
	for _, event := range events {
		if event.QuotationID == quotationID && event.Action == model.AuditActionVerificationFailed {
			failureAudited = true
		}
	}
	require.True(t, failureAudited, "malformed guess left no audit event")
}

func TestVerifyFlow_RateLimitBlocks(t *testing.T) {
	env, cleanup := setupRouter(t)
	defer cleanup()
	auth := staffToken(t)

	quotationID := createQuotation(t, env, auth, "Asha Verma "+newSuffix())
	shareToken := shareQuotation(t, env, auth, quotationID)
	verifyPath := "/api/v1/public/quotations/" + shareToken + "/verify"

	var lastCode int
	for i := 0; i < 5; i++ {
		resp := doJSON(t, env.router, http.MethodPost, verifyPath, "", map[string]string{"phone_digits": "0000"})
		lastCode = resp.Code
	}
	// The fifth failure trips the block.
	require.Equal(t, http.StatusTooManyRequests, lastCode)

	// Even the correct digits are rejected while blocked.
	resp := doJSON(t, env.router, http.MethodPost, verifyPath, "", map[string]string{"phone_digits": "3210"})
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
}

func TestRevoke_KillsLink(t *testing.T) {
	env, cleanup := setupRouter(t)
	defer cleanup()
	auth := staffToken(t)

	quotationID := createQuotation(t, env, auth, "Asha Verma "+newSuffix())
	shareToken := shareQuotation(t, env, auth, quotationID)

	resp := doJSON(t, env.router, http.MethodDelete, "/api/v1/quotations/"+quotationID+"/share", auth, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	verifyPath := "/api/v1/public/quotations/" + shareToken + "/verify"
	resp = doJSON(t, env.router, http.MethodPost, verifyPath, "", map[string]string{"phone_digits": "3210"})
	require.Equal(t, http.StatusNotFound, resp.Code)

	q, err := env.quotations.GetByID(context.Background(), quotationID)
	require.NoError(t, err)
	require.False(t, q.Sharing.IsShared)
	require.Empty(t, q.Sharing.ShareToken)
}

func TestQuotationUpdate(t *testing.T) {
	env, cleanup := setupRouter(t)
	defer cleanup()
	auth := staffToken(t)

	name := "Asha Verma " + newSuffix()
	quotationID := createQuotation(t, env, auth, name)
	shareToken := shareQuotation(t, env, auth, quotationID)

	// Staff can still edit a pending quotation; the share link keeps
	// working and the verification digits follow the new phone number.
	body := map[string]interface{}{
		"customer_name":  name,
		"customer_phone": "+91-9876505555",
		"items": []map[string]interface{}{
			{"description": "POP ceiling 140 sqft", "amount": 56000},
		},
	}
	resp := doJSON(t, env.router, http.MethodPut, "/api/v1/quotations/"+quotationID, auth, body)
	require.Equal(t, http.StatusOK, resp.Code)

	verifyPath := "/api/v1/public/quotations/" + shareToken + "/verify"
	resp = doJSON(t, env.router, http.MethodPost, verifyPath, "", map[string]string{"phone_digits": "5555"})
	require.Equal(t, http.StatusOK, resp.Code)

	// Once the customer accepts, the quotation is immutable.
	statusPath := "/api/v1/public/quotations/" + shareToken + "/status"
	resp = doJSON(t, env.router, http.MethodPost, statusPath, "", map[string]string{"status": "accepted"})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doJSON(t, env.router, http.MethodPut, "/api/v1/quotations/"+quotationID, auth, body)
	require.Equal(t, http.StatusConflict, resp.Code)
}

func TestCustomerStatusUpdate(t *testing.T) {
	env, cleanup := setupRouter(t)
	defer cleanup()
	auth := staffToken(t)

	quotationID := createQuotation(t, env, auth, "Asha Verma "+newSuffix())
	shareToken := shareQuotation(t, env, auth, quotationID)
	statusPath := "/api/v1/public/quotations/" + shareToken + "/status"

	resp := doJSON(t, env.router, http.MethodPost, statusPath, "", map[string]string{"status": "accepted", "note": "please start next week"})
	require.Equal(t, http.StatusOK, resp.Code)

	q, err := env.quotations.GetByID(context.Background(), quotationID)
	require.NoError(t, err)
	require.Equal(t, model.QuotationStatusAccepted, q.Status)
	require.Equal(t, "please start next week", q.CustomerNote)

	// A second decision conflicts: the quotation is no longer pending.
	resp = doJSON(t, env.router, http.MethodPost, statusPath, "", map[string]string{"status": "rejected"})
	require.Equal(t, http.StatusConflict, resp.Code)
}

func TestMetricsEndpoints(t *testing.T) {
	env, cleanup := setupRouter(t)
	defer cleanup()
	auth := staffToken(t)

	quotationID := createQuotation(t, env, auth, "Asha Verma "+newSuffix())
	shareToken := shareQuotation(t, env, auth, quotationID)
	verifyPath := "/api/v1/public/quotations/" + shareToken + "/verify"
	doJSON(t, env.router, http.MethodPost, verifyPath, "", map[string]string{"phone_digits": "3210"})

	// Audit and access writes are asynchronous.
	time.Sleep(200 * time.Millisecond)

	now := time.Now().Unix()
	path := fmt.Sprintf("/api/v1/metrics/sharing?from=%d&to=%d", now-3600, now+60)
	resp := doJSON(t, env.router, http.MethodGet, path, auth, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "total_shares")

	path = fmt.Sprintf("/api/v1/metrics/security?from=%d&to=%d", now-3600, now+60)
	resp = doJSON(t, env.router, http.MethodGet, path, auth, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "rate_limiter")
}
