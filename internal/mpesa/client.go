// Package mpesa is a client for the Daraja STK Push API: OAuth
// client-credentials token, push-payment initiation and status query.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AgutuSam/houseTreePWA/internal/config"
	"github.com/AgutuSam/houseTreePWA/internal/models"
	pkgerrors "github.com/AgutuSam/houseTreePWA/pkg/errors"
)

// Gateway is what the payment orchestrator depends on; tests swap in a
// recording fake.
type Gateway interface {
	InitiateSTKPush(ctx context.Context, amount int64, phone, reference, description string) (*models.STKPushResponse, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*models.STKQueryResponse, error)
}

type Client struct {
	cfg        config.MpesaConfig
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(cfg config.MpesaConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// accessToken fetches a fresh token on every call. Payments are low
// frequency, so there is nothing to invalidate.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	url := c.cfg.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", pkgerrors.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned %d", pkgerrors.ErrGatewayUnavailable, resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("%w: invalid token response", pkgerrors.ErrGatewayUnavailable)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", pkgerrors.ErrGatewayUnavailable)
	}
	return tok.AccessToken, nil
}

// timestamp is yyyymmddhhmmss in local time, per the Daraja contract.
func (c *Client) timestamp() string {
	return c.now().Format("20060102150405")
}

// password is base64(shortcode + passkey + timestamp).
func (c *Client) password(timestamp string) string {
	raw := c.cfg.Shortcode + c.cfg.Passkey + timestamp
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

func (c *Client) InitiateSTKPush(ctx context.Context, amount int64, phone, reference, description string) (*models.STKPushResponse, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	ts := c.timestamp()
	phone = NormalizePhone(phone)
	payload := models.STKPushRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          c.password(ts),
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phone,
		PartyB:            c.cfg.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  reference,
		TransactionDesc:   description,
	}

	var out models.STKPushResponse
	if err := c.post(ctx, "/mpesa/stkpush/v1/processrequest", token, payload, &out); err != nil {
		return nil, err
	}
	if out.ResponseCode != "0" {
		slog.Error("stk push rejected", "response_code", out.ResponseCode, "description", out.ResponseDescription)
		return nil, fmt.Errorf("%w: code %s", pkgerrors.ErrGatewayRejected, out.ResponseCode)
	}

	slog.Info("stk push initiated",
		"merchant_request_id", out.MerchantRequestID,
		"checkout_request_id", out.CheckoutRequestID,
		"amount", amount)
	return &out, nil
}

func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*models.STKQueryResponse, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	ts := c.timestamp()
	payload := models.STKQueryRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          c.password(ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}

	var out models.STKQueryResponse
	if err := c.post(ctx, "/mpesa/stkpushquery/v1/query", token, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path, token string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", pkgerrors.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned %d", pkgerrors.ErrGatewayUnavailable, path, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
