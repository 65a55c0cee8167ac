package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"unimarket/pkg/config"
	"unimarket/pkg/logger"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		PayChanguBaseURL: server.URL,
		PayChanguSecret:  "sec-test-key",
		PayChanguTimeout: 2 * time.Second,
		Log:              logger.New(logger.Config{Output: io.Discard}),
	}
	return NewClient(cfg)
}

func TestClient_Initiate_Success(t *testing.T) {
	var gotAuth string
	var gotPath string

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{"checkout_url":"https://checkout.test/abc","tx_ref":"UM-1-abc"}}`))
	})

	result, err := client.Initiate(context.Background(), InitiateRequest{
		Currency:  "MWK",
		Amount:    5000,
		TxRef:     "UM-1-abc",
		FirstName: "Chikondi",
		LastName:  "Banda",
		Email:     "chikondi@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bearer sec-test-key" {
		t.Errorf("expected bearer auth header, got %q", gotAuth)
	}
	if gotPath != "/payment" {
		t.Errorf("expected POST /payment, got %q", gotPath)
	}
	if result.CheckoutURL != "https://checkout.test/abc" {
		t.Errorf("unexpected checkout URL: %q", result.CheckoutURL)
	}
	if result.TxRef != "UM-1-abc" {
		t.Errorf("unexpected tx_ref: %q", result.TxRef)
	}
}

func TestClient_Initiate_Rejected(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"failed","message":"invalid currency"}`))
	})

	_, err := client.Initiate(context.Background(), InitiateRequest{TxRef: "UM-1-abc"})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestClient_Initiate_GatewayDown(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Initiate(context.Background(), InitiateRequest{TxRef: "UM-1-abc"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClient_Initiate_TransportFailure(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {})
	// Point at a closed port to force a connection error
	client.http.BaseURL = "http://127.0.0.1:1"

	_, err := client.Initiate(context.Background(), InitiateRequest{TxRef: "UM-1-abc"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClient_Verify(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus string
	}{
		{"settled payment", `{"status":"success","data":{"status":"success","reference":"PC-REF-1"}}`, PaymentSuccess},
		{"pending payment", `{"status":"success","data":{"status":"pending","reference":""}}`, PaymentPending},
		{"failed payment", `{"status":"success","data":{"status":"failed","reference":"PC-REF-2"}}`, PaymentFailed},
		{"unknown state treated as pending", `{"status":"success","data":{"status":"weird","reference":""}}`, PaymentPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			})

			result, err := client.Verify(context.Background(), "UM-1-abc")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotPath != "/verify-payment/UM-1-abc" {
				t.Errorf("unexpected path: %q", gotPath)
			}
			if result.Status != tt.wantStatus {
				t.Errorf("expected status %q, got %q", tt.wantStatus, result.Status)
			}
		})
	}
}

func TestClient_Verify_GatewayDown(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Verify(context.Background(), "UM-1-abc")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClient_Verify_Rejected(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status":"failed","message":"transaction not found"}`))
	})

	_, err := client.Verify(context.Background(), "UM-missing")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}
