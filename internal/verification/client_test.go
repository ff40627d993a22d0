package verification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/omnitrix-widget/internal/observability/metrics"
	"github.com/wolfman30/omnitrix-widget/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL, logging.Discard(), WithMetrics(metrics.NewWidgetMetrics(prometheus.NewRegistry())))
}

func TestClient_InitiateChat_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/customer/initiate-chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"name": "Ana", "phone": "5551234567", "email": "ana@example.com"}, body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"chatId":"c-1"}`))
	})

	resp, err := client.InitiateChat(context.Background(), InitiateChatRequest{Name: "Ana", Phone: "5551234567", Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, "c-1", resp["chatId"])
}

func TestClient_ResendAndVerifyBodies(t *testing.T) {
	var paths []string
	var bodies []map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		w.WriteHeader(http.StatusNoContent)
	})

	_, err := client.ResendOTP(context.Background(), "ana@example.com")
	require.NoError(t, err)
	resp, err := client.VerifyOTP(context.Background(), "ana@example.com", "123456")
	require.NoError(t, err)
	assert.Empty(t, resp)

	assert.Equal(t, []string{"/api/v1/customer/resend-otp", "/api/v1/customer/verify-otp"}, paths)
	assert.Equal(t, map[string]string{"email": "ana@example.com"}, bodies[0])
	assert.Equal(t, map[string]string{"email": "ana@example.com", "otp": "123456"}, bodies[1])
}

func TestClient_Non2xxReturnsAPIError(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"invalid otp"}`))
	})

	_, err := client.VerifyOTP(context.Background(), "a@b.co", "000000")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, `{"error":"invalid otp"}`, apiErr.Body)
	assert.Equal(t, EndpointVerifyOTP, apiErr.Endpoint)
	assert.Contains(t, err.Error(), "returned 422")
	assert.Equal(t, 1, calls, "failed calls are not retried")
}

func TestClient_TransportErrorHasZeroStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := ts.URL
	ts.Close()

	client := NewClient(base, logging.Discard())
	_, err := client.ResendOTP(context.Background(), "a@b.co")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 0, apiErr.Status)
	assert.NotNil(t, apiErr.Unwrap())
}

func TestClient_DefaultBaseURL(t *testing.T) {
	client := NewClient("  ", nil)
	assert.Equal(t, DefaultBaseURL, client.BaseURL())

	client = NewClient("https://api.example.com/", nil)
	assert.Equal(t, "https://api.example.com", client.BaseURL())
}
