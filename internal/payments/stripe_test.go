package payments

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	assert.EqualValues(t, 1999, ToMinorUnits(19.99))
	assert.EqualValues(t, 3000, ToMinorUnits(30))
	assert.EqualValues(t, 1050, ToMinorUnits(10.5))
}

func TestStripeClient_CreateIntent(t *testing.T) {
	var gotForm url.Values
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(body))
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","client_secret":"pi_123_secret_abc","status":"requires_payment_method","amount":1999,"currency":"usd"}`))
	}))
	defer srv.Close()

	c := NewStripeClient("sk_test_x").WithBaseURL(srv.URL + "/")
	intent, err := c.CreateIntent(context.Background(), IntentParams{
		Amount: 19.99, Currency: "USD", UserID: "u1", AppointmentID: "a1", IdempotencyKey: "idem-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret_abc", intent.ClientSecret)

	assert.Equal(t, "1999", gotForm.Get("amount"))
	assert.Equal(t, "usd", gotForm.Get("currency"))
	assert.Equal(t, "u1", gotForm.Get("metadata[user]"))
	assert.Equal(t, "a1", gotForm.Get("metadata[appointmentId]"))
	assert.Equal(t, "Bearer sk_test_x", gotHeaders.Get("Authorization"))
	assert.Equal(t, "application/x-www-form-urlencoded", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "idem-1", gotHeaders.Get("Idempotency-Key"))
}

func TestStripeClient_CreateIntent_Errors(t *testing.T) {
	_, err := NewStripeClient("").CreateIntent(context.Background(), IntentParams{Amount: 1})
	assert.ErrorIs(t, err, ErrNotConfigured)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"Your card was declined.","type":"card_error"}}`))
	}))
	defer srv.Close()

	_, err = NewStripeClient("sk").WithBaseURL(srv.URL).CreateIntent(context.Background(), IntentParams{Amount: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 402")
	assert.Contains(t, err.Error(), "Your card was declined.")

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":""}`))
	}))
	defer bad.Close()
	_, err = NewStripeClient("sk").WithBaseURL(bad.URL).CreateIntent(context.Background(), IntentParams{Amount: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing intent id")
}
