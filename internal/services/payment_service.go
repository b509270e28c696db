// Package services – PaymentService
//
// This file implements checkout-order creation against the payment provider
// and the capture-and-grant flow triggered by inbound provider webhooks.
// Order creation errors propagate to the caller; capture, role grant, and
// audit notices after a verified event are best-effort and never propagate.
//
// Inbound events must pass provider-side signature verification before any
// action is taken on them.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nexussoftworks/go-keybot/internal/chat"
	"github.com/nexussoftworks/go-keybot/internal/config"
)

// PaymentService creates checkout orders and finalizes approved ones.
type PaymentService struct {
	// Config carries provider credentials, mode, and webhook identity.
	Config config.PaymentConfig
	// BaseURL overrides the mode-derived provider endpoint when non-empty.
	BaseURL string
	// HTTP performs provider calls; its timeout bounds each call.
	HTTP *http.Client
	// Directory grants the premium role after capture.
	Directory chat.Directory
	// Notifier posts payment audit notices to the log channel.
	Notifier chat.Notifier
	// LogChannelID receives payment notices; empty disables them.
	LogChannelID string
	// PremiumRoleID is granted to the buyer after a captured payment.
	PremiumRoleID string
	// Log is the service logger.
	Log zerolog.Logger
}

// WebhookEvent is the decoded inbound provider event.
type WebhookEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

// actionable event types for capture-and-grant.
const (
	eventOrderApproved   = "CHECKOUT.ORDER.APPROVED"
	eventCaptureComplete = "PAYMENT.CAPTURE.COMPLETED"
)

// Actionable reports whether the event type triggers capture-and-grant.
func (e WebhookEvent) Actionable() bool {
	return e.EventType == eventOrderApproved || e.EventType == eventCaptureComplete
}

func (s *PaymentService) base() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return s.Config.APIBase()
}

// token obtains a bearer credential via the client-credentials grant.
func (s *PaymentService) token(ctx context.Context) (string, error) {
	if !s.Config.Configured() {
		return "", fmt.Errorf("%w: credentials not configured", ErrAuthFailed)
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base()+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	req.SetBasicAuth(s.Config.ClientID, s.Config.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := s.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d: %s", ErrAuthFailed, res.StatusCode, truncate(string(raw), 300))
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.AccessToken == "" {
		return "", fmt.Errorf("%w: malformed token response", ErrAuthFailed)
	}
	return body.AccessToken, nil
}

// CreateOrder creates a CAPTURE-intent order for amount USD, carrying buyerID
// as opaque correlation data, and returns the approval hyperlink the buyer
// must follow.
func (s *PaymentService) CreateOrder(ctx context.Context, amount float64, description, buyerID string) (string, error) {
	tok, err := s.token(ctx)
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"amount":      map[string]string{"currency_code": "USD", "value": fmt.Sprintf("%.2f", amount)},
			"description": description,
			"custom_id":   buyerID,
		}},
		"application_context": map[string]string{
			"brand_name": s.Config.BrandName,
			"return_url": s.Config.PublicURL + "/paypal/success",
			"cancel_url": s.Config.PublicURL + "/paypal/cancel",
		},
	}
	raw, err := s.post(ctx, tok, "/v2/checkout/orders", payload)
	if err != nil {
		return "", err
	}

	var order struct {
		Links []struct {
			Rel  string `json:"rel"`
			Href string `json:"href"`
		} `json:"links"`
	}
	if err := json.Unmarshal(raw, &order); err != nil {
		return "", fmt.Errorf("%w: malformed order response", ErrNoApprovalLink)
	}
	for _, l := range order.Links {
		if l.Rel == "approve" && l.Href != "" {
			return l.Href, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoApprovalLink, truncate(string(raw), 300))
}

// VerifySignature asks the provider whether an inbound webhook delivery is
// authentic. It fails closed: a missing webhook ID, transport failure, or any
// status other than SUCCESS means the event must not be acted on.
func (s *PaymentService) VerifySignature(ctx context.Context, hdr http.Header, rawEvent []byte) (bool, error) {
	if s.Config.WebhookID == "" {
		return false, fmt.Errorf("webhook verification: PAYPAL_WEBHOOK_ID not configured")
	}

	tok, err := s.token(ctx)
	if err != nil {
		return false, err
	}

	payload := map[string]any{
		"auth_algo":         hdr.Get("Paypal-Auth-Algo"),
		"cert_url":          hdr.Get("Paypal-Cert-Url"),
		"transmission_id":   hdr.Get("Paypal-Transmission-Id"),
		"transmission_sig":  hdr.Get("Paypal-Transmission-Sig"),
		"transmission_time": hdr.Get("Paypal-Transmission-Time"),
		"webhook_id":        s.Config.WebhookID,
		"webhook_event":     json.RawMessage(rawEvent),
	}
	raw, err := s.post(ctx, tok, "/v1/notifications/verify-webhook-signature", payload)
	if err != nil {
		return false, err
	}

	var res struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return false, fmt.Errorf("webhook verification: malformed response")
	}
	return res.VerificationStatus == "SUCCESS", nil
}

// HandleEvent finalizes a verified, actionable event: capture the order
// (idempotent; failure logged), grant the premium role to the correlated
// buyer (missing member logged), and post a payment notice. All three are
// best-effort; HandleEvent only reports the event as handled.
func (s *PaymentService) HandleEvent(ctx context.Context, ev WebhookEvent) {
	orderID, buyerID := OrderRef(ev.Resource)

	if orderID != "" {
		if err := s.capture(ctx, orderID); err != nil {
			s.Log.Warn().Err(err).Str("order", orderID).Msg("order capture failed")
		}
	}

	if buyerID != "" && s.PremiumRoleID != "" {
		if err := s.Directory.GrantRole(ctx, buyerID, s.PremiumRoleID); err != nil {
			s.Log.Warn().Err(err).Str("buyer", buyerID).Msg("premium role grant failed")
		}
	}

	if s.LogChannelID != "" {
		msg := fmt.Sprintf("✅ **Payment Completed**\nOrder ID: %s\nBuyer: %s", orDefault(orderID, "unknown"), orDefault(buyerID, "none"))
		if _, err := s.Notifier.SendChannel(ctx, s.LogChannelID, msg); err != nil {
			s.Log.Warn().Err(err).Msg("payment notice send failed")
		}
	}

	s.Log.Info().
		Str("event", ev.EventType).
		Str("order", orderID).
		Str("buyer", buyerID).
		Msg("payment event handled")
}

// capture attempts to capture an approved order. Capturing an already
// captured order is idempotent on the provider side.
func (s *PaymentService) capture(ctx context.Context, orderID string) error {
	tok, err := s.token(ctx)
	if err != nil {
		return err
	}
	_, err = s.post(ctx, tok, "/v2/checkout/orders/"+orderID+"/capture", struct{}{})
	return err
}

// post sends an authenticated JSON POST to the provider and returns the raw
// response body. Non-2xx statuses are ErrDeliveryFailed.
func (s *PaymentService) post(ctx context.Context, token, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base()+path, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := s.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeliveryFailed, path, err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s: status %d: %s", ErrDeliveryFailed, path, res.StatusCode, truncate(string(raw), 300))
	}
	return raw, nil
}

// OrderRef pulls the order ID and buyer correlation ID out of an event
// resource. Several provider payload shapes exist, so nested fallbacks are
// tried in order.
func OrderRef(resource json.RawMessage) (orderID, buyerID string) {
	var r struct {
		ID            string `json:"id"`
		CustomID      string `json:"custom_id"`
		PurchaseUnits []struct {
			CustomID string `json:"custom_id"`
		} `json:"purchase_units"`
		Resource struct {
			ID            string `json:"id"`
			PurchaseUnits []struct {
				CustomID string `json:"custom_id"`
			} `json:"purchase_units"`
		} `json:"resource"`
	}
	if err := json.Unmarshal(resource, &r); err != nil {
		return "", ""
	}

	orderID = r.ID
	if orderID == "" {
		orderID = r.Resource.ID
	}

	switch {
	case len(r.PurchaseUnits) > 0 && r.PurchaseUnits[0].CustomID != "":
		buyerID = r.PurchaseUnits[0].CustomID
	case r.CustomID != "":
		buyerID = r.CustomID
	case len(r.Resource.PurchaseUnits) > 0:
		buyerID = r.Resource.PurchaseUnits[0].CustomID
	}
	return orderID, buyerID
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
