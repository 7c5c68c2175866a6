package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/safar/storefront/internal/config"
	"github.com/shopspring/decimal"
)

// PayPalClient uses the Orders v2 API with client-credential tokens.
type PayPalClient struct {
	baseURL    string
	clientID   string
	secret     string
	returnURL  string
	cancelURL  string
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
	now         func() time.Time
}

func NewPayPalClient(cfg config.PaymentConfig) *PayPalClient {
	return &PayPalClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		clientID:  cfg.ClientID,
		secret:    cfg.Secret,
		returnURL: cfg.ReturnURL,
		cancelURL: cfg.CancelURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		now: time.Now,
	}
}

type ppAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type ppLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type ppCapture struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Amount ppAmount `json:"amount"`
}

type ppOrder struct {
	ID            string   `json:"id"`
	Status        string   `json:"status"`
	Links         []ppLink `json:"links"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []ppCapture `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type ppError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

func (e *ppError) hasIssue(issue string) bool {
	for _, d := range e.Details {
		if d.Issue == issue {
			return true
		}
	}
	return false
}

func (c *PayPalClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.expiresAt) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	// Renew a minute early so a token never expires mid-request.
	c.accessToken = tok.AccessToken
	c.expiresAt = c.now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

// call sends an authenticated JSON request. Non-2xx responses are returned
// as *ppError together with the status code.
func (c *PayPalClient) call(ctx context.Context, method, path string, in, out any) (int, *ppError, error) {
	token, err := c.token(ctx)
	if err != nil {
		return 0, nil, err
	}

	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				return resp.StatusCode, nil, fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return resp.StatusCode, nil, nil
	}

	apiErr := &ppError{}
	if err := json.Unmarshal(body, apiErr); err != nil {
		apiErr.Message = string(body)
	}
	return resp.StatusCode, apiErr, nil
}

func (c *PayPalClient) CreateOrder(ctx context.Context, req PaymentRequest) (*PaymentOrder, error) {
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": req.OrderID,
			"description":  req.Description,
			"amount": ppAmount{
				CurrencyCode: ProviderCurrency,
				Value:        req.Amount.StringFixed(2),
			},
		}},
		"application_context": map[string]string{
			"return_url": c.returnURL,
			"cancel_url": c.cancelURL,
		},
	}

	var order ppOrder
	status, apiErr, err := c.call(ctx, http.MethodPost, "/v2/checkout/orders", payload, &order)
	if err != nil {
		return nil, err
	}
	if apiErr != nil {
		return nil, fmt.Errorf("create payment order: status %d: %s %s", status, apiErr.Name, apiErr.Message)
	}

	for _, link := range order.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			return &PaymentOrder{Ref: order.ID, ApprovalLink: link.Href}, nil
		}
	}
	return nil, fmt.Errorf("payment order %s has no approval link", order.ID)
}

// Capture finalizes an approved order. An order the provider already
// captured is resolved through a status lookup so retries stay idempotent.
func (c *PayPalClient) Capture(ctx context.Context, ref string) (*CaptureResult, error) {
	var order ppOrder
	status, apiErr, err := c.call(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(ref)+"/capture", struct{}{}, &order)
	if err != nil {
		return nil, err
	}

	if apiErr != nil {
		switch {
		case status == http.StatusUnprocessableEntity && apiErr.hasIssue("ORDER_ALREADY_CAPTURED"):
			st, err := c.Status(ctx, ref)
			if err != nil {
				return nil, err
			}
			if st.Capture == nil {
				return nil, fmt.Errorf("payment %s reported captured without capture details", ref)
			}
			return st.Capture, nil
		case status == http.StatusUnprocessableEntity && apiErr.hasIssue("ORDER_NOT_APPROVED"):
			return nil, fmt.Errorf("%w: %s", ErrNotApproved, ref)
		case status == http.StatusUnprocessableEntity &&
			(apiErr.hasIssue("INSTRUMENT_DECLINED") || apiErr.hasIssue("TRANSACTION_REFUSED")):
			return nil, fmt.Errorf("%w: %s", ErrDeclined, apiErr.Message)
		}
		return nil, fmt.Errorf("capture payment %s: status %d: %s %s", ref, status, apiErr.Name, apiErr.Message)
	}

	result, err := captureFrom(&order)
	if err != nil {
		return nil, err
	}
	if result.Status == StatusDeclined {
		return nil, fmt.Errorf("%w: capture %s", ErrDeclined, result.CaptureID)
	}
	return result, nil
}

func (c *PayPalClient) Status(ctx context.Context, ref string) (*StatusResult, error) {
	var order ppOrder
	status, apiErr, err := c.call(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(ref), nil, &order)
	if err != nil {
		return nil, err
	}
	if apiErr != nil {
		return nil, fmt.Errorf("payment status %s: status %d: %s %s", ref, status, apiErr.Name, apiErr.Message)
	}

	result := &StatusResult{Status: order.Status}
	if order.Status == StatusCompleted {
		capture, err := captureFrom(&order)
		if err != nil {
			return nil, err
		}
		result.Capture = capture
	}
	return result, nil
}

func captureFrom(order *ppOrder) (*CaptureResult, error) {
	for _, unit := range order.PurchaseUnits {
		for _, capture := range unit.Payments.Captures {
			amount, err := decimal.NewFromString(capture.Amount.Value)
			if err != nil {
				return nil, fmt.Errorf("parse captured amount %q: %w", capture.Amount.Value, err)
			}
			return &CaptureResult{CaptureID: capture.ID, Status: capture.Status, Amount: amount}, nil
		}
	}
	return nil, fmt.Errorf("payment %s has no capture", order.ID)
}
