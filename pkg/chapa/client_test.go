package chapa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.ChapaConfig{SecretKey: "CHASECK_TEST-abc", BaseURL: srv.URL + "/", Timeout: 2 * time.Second}, nil)
}

func TestInitializeSendsBearerAndBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transaction/initialize" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer CHASECK_TEST-abc" {
			t.Fatalf("unexpected auth %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["tx_ref"] != "order-1" || body["amount"] != "500.00" || body["currency"] != "ETB" {
			t.Fatalf("unexpected body %v", body)
		}
		if body["callback_url"] != "https://shop.example/api/v1/webhooks/chapa" {
			t.Fatalf("unexpected callback %v", body["callback_url"])
		}
		_, _ = w.Write([]byte(`{"message":"Hosted Link","status":"success","data":{"checkout_url":"https://checkout.chapa.co/x"}}`))
	})

	res, err := client.Initialize(context.Background(), InitializeParams{
		TxRef:       "order-1",
		Amount:      decimal.NewFromInt(500),
		Currency:    "etb",
		Email:       "abebe@example.com",
		CallbackURL: "https://shop.example/api/v1/webhooks/chapa",
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if res.CheckoutURL != "https://checkout.chapa.co/x" {
		t.Fatalf("unexpected checkout url %q", res.CheckoutURL)
	}
}

func TestInitializeRejection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":{"email":["The email must be a valid email address."]},"status":"failed","data":null}`))
	})

	_, err := client.Initialize(context.Background(), InitializeParams{TxRef: "o", Amount: decimal.NewFromInt(1), Currency: "ETB"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 APIError, got %v", err)
	}
	if IsUnavailable(err) {
		t.Fatal("a 400 is a rejection, not an outage")
	}
}

func TestVerifyParsesTransaction(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/transaction/verify/order-1" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"message":"Payment details","status":"success","data":{"first_name":"Abebe","last_name":"Kebede","email":"abebe@example.com","currency":"ETB","amount":500,"status":"success","reference":"APfxC1","tx_ref":"order-1"}}`))
	})

	tx, err := client.Verify(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !tx.Successful() || tx.Reference != "APfxC1" || !tx.Amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if tx.CustomerName() != "Abebe Kebede" {
		t.Fatalf("unexpected customer name %q", tx.CustomerName())
	}
}

func TestVerifyServerErrorIsUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Verify(context.Background(), "order-1")
	if !IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestMissingSecret(t *testing.T) {
	client := NewClient(config.ChapaConfig{}, nil)
	if client.Configured() {
		t.Fatal("expected unconfigured client")
	}
	if _, err := client.Verify(context.Background(), "order-1"); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
	if IsUnavailable(ErrMissingSecret) {
		t.Fatal("missing secret is not an outage")
	}
}
