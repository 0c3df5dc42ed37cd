package pesapal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"kaluma-be/internal/fault"
	"kaluma-be/internal/logger"

	"go.uber.org/zap"
)

// Gateway is the Pesapal v3 API surface this service depends on. All
// operations are single request/response exchanges with no retries; retry
// policy belongs to the caller.
type Gateway interface {
	Authenticate(ctx context.Context) (*AccessToken, error)
	ListIPNs(ctx context.Context, token string) ([]IPNRegistration, error)
	RegisterIPN(ctx context.Context, token, callbackURL string, nt NotificationType) (*IPNRegistration, error)
	SubmitOrder(ctx context.Context, token string, order *OrderRequest) (*OrderResponse, error)
	TransactionStatus(ctx context.Context, token, trackingID string) (*TransactionStatus, error)
}

type client struct {
	baseURL    string
	cred       Credential
	httpClient *http.Client
}

func NewClient(env Environment, cred Credential) Gateway {
	base := sandboxBaseURL
	if env == EnvProduction {
		base = productionBaseURL
	}
	if cred.ConsumerKey == "" || cred.ConsumerSecret == "" {
		logger.L().Warn("Pesapal credentials are empty")
	}
	return &client{
		baseURL: base,
		cred:    cred,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *client) newRequest(ctx context.Context, method, path, token string, body any) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}

	// Pesapal answers JSON but wants text/plain accepted.
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// Authenticate mints a fresh bearer token from the consumer credentials.
func (c *client) Authenticate(ctx context.Context) (*AccessToken, error) {
	log := logger.L()

	req, err := c.newRequest(ctx, http.MethodPost, "/api/Auth/RequestToken", "", map[string]string{
		"consumer_key":    c.cred.ConsumerKey,
		"consumer_secret": c.cred.ConsumerSecret,
	})
	if err != nil {
		return nil, fault.Authf(err, "", "failed to build token request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("Pesapal token request failed", zap.Error(err))
		return nil, fault.Authf(err, "", "token request failed")
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.Authf(err, "", "failed to read token response")
	}

	if resp.StatusCode != http.StatusOK {
		log.Error("Pesapal rejected credentials",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return nil, fault.Authf(nil, string(bodyBytes), "token request returned status %d", resp.StatusCode)
	}

	var tok AccessToken
	if err := json.Unmarshal(bodyBytes, &tok); err != nil {
		return nil, fault.Authf(err, string(bodyBytes), "failed to decode token response")
	}
	if tok.Token == "" {
		return nil, fault.Authf(nil, string(bodyBytes), "no access token returned")
	}

	log.Debug("access token minted", zap.String("expiry", tok.ExpiryDate))
	return &tok, nil
}

// ListIPNs returns every IPN URL registered for this merchant account.
func (c *client) ListIPNs(ctx context.Context, token string) ([]IPNRegistration, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/URLSetup/GetIpnList", token, nil)
	if err != nil {
		return nil, fault.Upstreamf(err, "", "failed to build IPN list request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.L().Error("IPN list request failed", zap.Error(err))
		return nil, fault.Upstreamf(err, "", "IPN list request failed")
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.Upstreamf(err, "", "failed to read IPN list response")
	}

	if resp.StatusCode != http.StatusOK {
		logger.L().Error("Pesapal returned non-success for IPN list",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return nil, fault.Upstreamf(nil, string(bodyBytes), "IPN list returned status %d", resp.StatusCode)
	}

	var ipns []IPNRegistration
	if err := json.Unmarshal(bodyBytes, &ipns); err != nil {
		return nil, fault.Upstreamf(err, string(bodyBytes), "failed to decode IPN list response")
	}
	return ipns, nil
}

// RegisterIPN subscribes callbackURL to payment notifications and returns
// the notification id to attach to order submissions.
func (c *client) RegisterIPN(ctx context.Context, token, callbackURL string, nt NotificationType) (*IPNRegistration, error) {
	log := logger.L().With(zap.String("callback_url", callbackURL))

	req, err := c.newRequest(ctx, http.MethodPost, "/api/URLSetup/RegisterIPN", token, map[string]string{
		"ipn_notification_type": string(nt),
		"url":                   callbackURL,
	})
	if err != nil {
		return nil, fault.Upstreamf(err, "", "failed to build IPN registration request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("IPN registration request failed", zap.Error(err))
		return nil, fault.Upstreamf(err, "", "IPN registration request failed")
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.Upstreamf(err, "", "failed to read IPN registration response")
	}

	if resp.StatusCode != http.StatusOK {
		log.Error("Pesapal returned non-success for IPN registration",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return nil, fault.Upstreamf(nil, string(bodyBytes), "IPN registration returned status %d", resp.StatusCode)
	}

	var ipn IPNRegistration
	if err := json.Unmarshal(bodyBytes, &ipn); err != nil {
		return nil, fault.Upstreamf(err, string(bodyBytes), "failed to decode IPN registration response")
	}

	log.Info("IPN URL registered", zap.String("ipn_id", ipn.IPNID))
	return &ipn, nil
}

// SubmitOrder sends the order and returns the hosted-page redirect. A
// response without a redirect URL is a failed submission even on HTTP 200.
func (c *client) SubmitOrder(ctx context.Context, token string, order *OrderRequest) (*OrderResponse, error) {
	log := logger.L().With(
		zap.String("merchant_reference", order.ID),
		zap.Float64("amount", order.Amount),
		zap.String("currency", order.Currency),
	)

	req, err := c.newRequest(ctx, http.MethodPost, "/api/Transactions/SubmitOrderRequest", token, order)
	if err != nil {
		return nil, fault.Upstreamf(err, "", "failed to build order request")
	}

	log.Info("submitting order to Pesapal")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("order submission failed", zap.Error(err))
		return nil, fault.Upstreamf(err, "", "order submission failed")
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.Upstreamf(err, "", "failed to read order response")
	}

	if resp.StatusCode != http.StatusOK {
		log.Error("Pesapal returned non-success for order submission",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return nil, fault.Upstreamf(nil, string(bodyBytes), "order submission returned status %d", resp.StatusCode)
	}

	var out OrderResponse
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		return nil, fault.Upstreamf(err, string(bodyBytes), "failed to decode order response")
	}
	if out.RedirectURL == "" {
		log.Error("order response missing redirect URL", zap.ByteString("response", bodyBytes))
		return nil, fault.Upstreamf(nil, string(bodyBytes), "no redirect URL returned")
	}

	log.Info("order submitted",
		zap.String("order_tracking_id", out.OrderTrackingID),
	)
	return &out, nil
}

// TransactionStatus fetches the authoritative status for a tracking id.
func (c *client) TransactionStatus(ctx context.Context, token, trackingID string) (*TransactionStatus, error) {
	log := logger.L().With(zap.String("order_tracking_id", trackingID))

	path := "/api/Transactions/GetTransactionStatus?orderTrackingId=" + url.QueryEscape(trackingID)
	req, err := c.newRequest(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, fault.Upstreamf(err, "", "failed to build status request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("status request failed", zap.Error(err))
		return nil, fault.Upstreamf(err, "", "status request failed")
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.Upstreamf(err, "", "failed to read status response")
	}

	if resp.StatusCode != http.StatusOK {
		log.Error("Pesapal returned non-success for status fetch",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return nil, fault.Upstreamf(nil, string(bodyBytes), "status fetch returned status %d", resp.StatusCode)
	}

	var status TransactionStatus
	if err := json.Unmarshal(bodyBytes, &status); err != nil {
		return nil, fault.Upstreamf(err, string(bodyBytes), "failed to decode status response")
	}
	return &status, nil
}
