package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCard = CardDetails{
	Number:   "4242424242424242",
	ExpMonth: "12",
	ExpYear:  "2030",
	CVC:      "123",
	Holder:   "Ada Lovelace",
}

func TestConfirmCardPayment_Succeeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payment_intents/pi_123/confirm", r.URL.Path)
		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "sk_test_key", user)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "pi_123_secret_abc", r.PostForm.Get("client_secret"))
		assert.Equal(t, "4242424242424242", r.PostForm.Get("payment_method_data[card][number]"))
		assert.Equal(t, "Ada Lovelace", r.PostForm.Get("payment_method_data[billing_details][name]"))

		w.Write([]byte(`{"id":"pi_123","status":"succeeded"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test_key", 5*time.Second)
	result, err := client.ConfirmCardPayment(context.Background(), "pi_123_secret_abc", testCard)
	require.NoError(t, err)
	assert.Equal(t, ConfirmSucceeded, result.Status)
	assert.Equal(t, "pi_123", result.PaymentIntentID)
}

func TestConfirmCardPayment_Declined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"id":"pi_123","error":{"message":"Your card has insufficient funds."}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test_key", 5*time.Second)
	result, err := client.ConfirmCardPayment(context.Background(), "pi_123_secret_abc", testCard)
	require.NoError(t, err, "a decline is a result, not an error")
	assert.Equal(t, ConfirmDeclined, result.Status)
	assert.Equal(t, "Your card has insufficient funds.", result.Message)
}

func TestConfirmCardPayment_RequiresAction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"pi_123","status":"requires_action"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test_key", 5*time.Second)
	result, err := client.ConfirmCardPayment(context.Background(), "pi_123_secret_abc", testCard)
	require.NoError(t, err)
	assert.Equal(t, ConfirmRequiresAction, result.Status)
}

func TestConfirmCardPayment_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test_key", 5*time.Second)
	_, err := client.ConfirmCardPayment(context.Background(), "pi_123_secret_abc", testCard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestIntentIDFromSecret(t *testing.T) {
	id, err := intentIDFromSecret("pi_3ABCdef_secret_xyz")
	require.NoError(t, err)
	assert.Equal(t, "pi_3ABCdef", id)

	_, err = intentIDFromSecret("garbage")
	assert.Error(t, err)

	_, err = intentIDFromSecret("_secret_xyz")
	assert.Error(t, err)
}
