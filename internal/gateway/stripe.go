package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client confirms card payments against a Stripe-compatible REST gateway.
// It trades the browser SDK's confirmCardPayment for the equivalent server
// call: confirm the intent named by the client secret with the card details.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type confirmResponseDTO struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ConfirmCardPayment confirms the payment intent named by clientSecret with
// the given card. Declines come back as a ConfirmResult, not an error; an
// error return means the charge outcome is unknown.
func (c *Client) ConfirmCardPayment(ctx context.Context, clientSecret string, card CardDetails) (*ConfirmResult, error) {
	intentID, err := intentIDFromSecret(clientSecret)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("client_secret", clientSecret)
	form.Set("payment_method_data[type]", "card")
	form.Set("payment_method_data[card][number]", card.Number)
	form.Set("payment_method_data[card][exp_month]", card.ExpMonth)
	form.Set("payment_method_data[card][exp_year]", card.ExpYear)
	form.Set("payment_method_data[card][cvc]", card.CVC)
	if card.Holder != "" {
		form.Set("payment_method_data[billing_details][name]", card.Holder)
	}

	endpoint := fmt.Sprintf("%s/v1/payment_intents/%s/confirm", c.baseURL, url.PathEscape(intentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.secretKey, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	var dto confirmResponseDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}

	// Card errors come back as 402 with an error payload; anything else
	// non-2xx is a transport-level failure.
	if resp.StatusCode == http.StatusPaymentRequired {
		message := "card was declined"
		if dto.Error != nil && dto.Error.Message != "" {
			message = dto.Error.Message
		}
		return &ConfirmResult{
			Status:          ConfirmDeclined,
			PaymentIntentID: dto.ID,
			Message:         message,
		}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	switch dto.Status {
	case "succeeded":
		return &ConfirmResult{Status: ConfirmSucceeded, PaymentIntentID: dto.ID}, nil
	case "requires_action":
		return &ConfirmResult{
			Status:          ConfirmRequiresAction,
			PaymentIntentID: dto.ID,
			Message:         "payment requires additional authentication",
		}, nil
	default:
		message := fmt.Sprintf("payment not completed, gateway status %q", dto.Status)
		if dto.LastPaymentError != nil && dto.LastPaymentError.Message != "" {
			message = dto.LastPaymentError.Message
		}
		return &ConfirmResult{
			Status:          ConfirmDeclined,
			PaymentIntentID: dto.ID,
			Message:         message,
		}, nil
	}
}

// intentIDFromSecret extracts pi_... from a pi_..._secret_... client secret.
func intentIDFromSecret(clientSecret string) (string, error) {
	id, _, found := strings.Cut(clientSecret, "_secret_")
	if !found || id == "" {
		return "", fmt.Errorf("malformed client secret")
	}
	return id, nil
}
