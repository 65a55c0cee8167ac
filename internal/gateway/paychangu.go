package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"unimarket/pkg/client"
	"unimarket/pkg/config"
	"unimarket/pkg/logger"
)

// Payment processing states as reported by PayChangu
const (
	PaymentSuccess = "success"
	PaymentPending = "pending"
	PaymentFailed  = "failed"
)

// Client talks to the PayChangu payment gateway. The bearer credential is
// injected from server-side configuration and never leaves this package.
type Client struct {
	http   *client.HttpClient
	secret string
	log    *logger.Logger
}

// InitiateRequest is the checkout session request sent to PayChangu
type InitiateRequest struct {
	Currency    string `json:"currency"`
	Amount      int64  `json:"amount"`
	TxRef       string `json:"tx_ref"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	CallbackURL string `json:"callback_url"`
	ReturnURL   string `json:"return_url"`
}

// InitiateResult is the outcome of a successful checkout session creation
type InitiateResult struct {
	CheckoutURL string
	TxRef       string
}

// VerifyResult is the gateway's answer about a transaction's state
type VerifyResult struct {
	Status    string // success, pending, or failed
	Reference string // gateway-side transaction reference
}

func (v VerifyResult) Succeeded() bool {
	return v.Status == PaymentSuccess
}

func (v VerifyResult) Failed() bool {
	return v.Status == PaymentFailed
}

type initiateResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		CheckoutURL string `json:"checkout_url"`
		TxRef       string `json:"tx_ref"`
	} `json:"data"`
}

type verifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
	} `json:"data"`
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		http:   client.NewHttpClient(cfg.PayChanguBaseURL, cfg.PayChanguTimeout),
		secret: cfg.PayChanguSecret,
		log:    cfg.Log.WithComponent("paychangu"),
	}
}

// Initiate creates a hosted checkout session for the given payment
func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	resp, err := c.http.POST(ctx, "/payment", req, c.authHeaders())
	if err != nil {
		c.log.Error("Checkout initiation transport failure", "tx_ref", req.TxRef, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		c.log.Error("Checkout initiation gateway failure", "tx_ref", req.TxRef, "status_code", resp.StatusCode)
		return nil, fmt.Errorf("%w: gateway returned %d", ErrUnavailable, resp.StatusCode)
	}

	var body initiateResponse
	if err := resp.DecodeJSON(&body); err != nil {
		c.log.Error("Checkout initiation returned malformed body", "tx_ref", req.TxRef, "error", err)
		return nil, fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= http.StatusBadRequest || body.Status != "success" {
		c.log.Warn("Checkout initiation rejected",
			"tx_ref", req.TxRef,
			"status_code", resp.StatusCode,
			"gateway_message", body.Message,
		)
		return nil, fmt.Errorf("%w: %s", ErrRejected, gatewayMessage(body.Message))
	}

	if body.Data.CheckoutURL == "" {
		return nil, fmt.Errorf("%w: response missing checkout_url", ErrRejected)
	}

	result := &InitiateResult{
		CheckoutURL: body.Data.CheckoutURL,
		TxRef:       body.Data.TxRef,
	}
	// The gateway may echo back its own reference; fall back to ours
	if result.TxRef == "" {
		result.TxRef = req.TxRef
	}

	c.log.Info("Checkout session created", "tx_ref", result.TxRef)
	return result, nil
}

// Verify asks the gateway for the authoritative state of a transaction
func (c *Client) Verify(ctx context.Context, txRef string) (*VerifyResult, error) {
	if txRef == "" {
		return nil, fmt.Errorf("%w: empty transaction reference", ErrRejected)
	}

	resp, err := c.http.GET(ctx, "/verify-payment/"+txRef, c.authHeaders())
	if err != nil {
		c.log.Error("Verification transport failure", "tx_ref", txRef, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		c.log.Error("Verification gateway failure", "tx_ref", txRef, "status_code", resp.StatusCode)
		return nil, fmt.Errorf("%w: gateway returned %d", ErrUnavailable, resp.StatusCode)
	}

	var body verifyResponse
	if err := resp.DecodeJSON(&body); err != nil {
		c.log.Error("Verification returned malformed body", "tx_ref", txRef, "error", err)
		return nil, fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= http.StatusBadRequest || body.Status != "success" {
		c.log.Warn("Verification rejected",
			"tx_ref", txRef,
			"status_code", resp.StatusCode,
			"gateway_message", body.Message,
		)
		return nil, fmt.Errorf("%w: %s", ErrRejected, gatewayMessage(body.Message))
	}

	status := strings.ToLower(body.Data.Status)
	switch status {
	case PaymentSuccess, PaymentPending, PaymentFailed:
	default:
		// An unrecognised state gives no grounds to settle either way
		c.log.Warn("Verification returned unknown payment state", "tx_ref", txRef, "payment_status", body.Data.Status)
		status = PaymentPending
	}

	return &VerifyResult{
		Status:    status,
		Reference: body.Data.Reference,
	}, nil
}

func (c *Client) authHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.secret,
	}
}

func gatewayMessage(msg string) string {
	if msg == "" {
		return "no reason given"
	}
	return msg
}
