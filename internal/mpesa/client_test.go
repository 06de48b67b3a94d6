package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AgutuSam/houseTreePWA/internal/config"
	"github.com/AgutuSam/houseTreePWA/internal/models"
	pkgerrors "github.com/AgutuSam/houseTreePWA/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"0712345678":     "254712345678",
		"+254712345678":  "254712345678",
		"254712345678":   "254712345678",
		"712345678":      "254712345678",
		" 0712345678 ":   "254712345678",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePhone(in), "input %q", in)
	}

	// Idempotent: normalizing the canonical form is a no-op.
	assert.Equal(t, "254712345678", NormalizePhone(NormalizePhone("0712345678")))
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(config.MpesaConfig{
		BaseURL:        srv.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		Passkey:        "passkey",
		Shortcode:      "174379",
		CallbackURL:    "https://housetree.example/api/mpesa/callback",
	})
	c.now = func() time.Time { return time.Date(2026, 8, 30, 14, 5, 9, 0, time.UTC) }
	return c, srv
}

func TestInitiateSTKPush_Success(t *testing.T) {
	var pushed models.STKPushRequest
	var tokenCalls int

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1", "expires_in": "3599"})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&pushed))
		json.NewEncoder(w).Encode(models.STKPushResponse{
			MerchantRequestID:   "mr-1",
			CheckoutRequestID:   "co-1",
			ResponseCode:        "0",
			ResponseDescription: "Success",
			CustomerMessage:     "Request accepted",
		})
	})

	c, _ := newTestClient(t, mux)

	resp, err := c.InitiateSTKPush(context.Background(), 2500, "0712345678", "SUB-1", "Premium Subscription")
	assert.NoError(t, err)
	assert.Equal(t, "mr-1", resp.MerchantRequestID)
	assert.Equal(t, "co-1", resp.CheckoutRequestID)
	assert.Equal(t, 1, tokenCalls, "token is acquired fresh per call")

	assert.Equal(t, "254712345678", pushed.PhoneNumber)
	assert.Equal(t, "254712345678", pushed.PartyA)
	assert.Equal(t, "174379", pushed.BusinessShortCode)
	assert.Equal(t, "CustomerPayBillOnline", pushed.TransactionType)
	assert.Equal(t, int64(2500), pushed.Amount)
	assert.Equal(t, "20260830140509", pushed.Timestamp)

	wantPassword := base64.StdEncoding.EncodeToString([]byte("174379" + "passkey" + "20260830140509"))
	assert.Equal(t, wantPassword, pushed.Password)
}

func TestInitiateSTKPush_NonZeroResponseCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.STKPushResponse{ResponseCode: "1032", ResponseDescription: "Cancelled"})
	})

	c, _ := newTestClient(t, mux)
	_, err := c.InitiateSTKPush(context.Background(), 100, "0712345678", "ref", "desc")
	assert.ErrorIs(t, err, pkgerrors.ErrGatewayRejected)
}

func TestInitiateSTKPush_TokenFailures(t *testing.T) {
	t.Run("non-2xx token endpoint", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		c, _ := newTestClient(t, mux)
		_, err := c.InitiateSTKPush(context.Background(), 100, "0712345678", "ref", "desc")
		assert.ErrorIs(t, err, pkgerrors.ErrGatewayUnavailable)
	})

	t.Run("missing token", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{})
		})
		c, _ := newTestClient(t, mux)
		_, err := c.InitiateSTKPush(context.Background(), 100, "0712345678", "ref", "desc")
		assert.ErrorIs(t, err, pkgerrors.ErrGatewayUnavailable)
	})
}

func TestInitiateSTKPush_Non2xxPush(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream error", http.StatusBadGateway)
	})

	c, _ := newTestClient(t, mux)
	_, err := c.InitiateSTKPush(context.Background(), 100, "0712345678", "ref", "desc")
	assert.ErrorIs(t, err, pkgerrors.ErrGatewayUnavailable)
}

func TestQueryStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
	})
	mux.HandleFunc("/mpesa/stkpushquery/v1/query", func(w http.ResponseWriter, r *http.Request) {
		var req models.STKQueryRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "co-9", req.CheckoutRequestID)
		json.NewEncoder(w).Encode(models.STKQueryResponse{
			ResponseCode:      "0",
			CheckoutRequestID: "co-9",
			ResultCode:        "0",
			ResultDesc:        "The service request is processed successfully.",
		})
	})

	c, _ := newTestClient(t, mux)
	resp, err := c.QueryStatus(context.Background(), "co-9")
	assert.NoError(t, err)
	assert.Equal(t, "0", resp.ResultCode)
}
