package prices

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bobmcallan/folio/internal/models"
)

func TestGetPrice_ParsesResponse(t *testing.T) {
	var captured priceRequest
	var auth, method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"ticker":    "AAPL",
				"price":     187.25,
				"currency":  "USD",
				"timestamp": "2024-03-28T15:04:05.123456",
				"provider":  "yahoo_finance",
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", WithAPIKey("secret"))
	quote, err := client.GetPrice(context.Background(), "  aapl ")
	if err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}

	if method != http.MethodPost {
		t.Errorf("expected POST, got %s", method)
	}
	if path != "/get_stock_price" {
		t.Errorf("expected path /get_stock_price, got %s", path)
	}
	if captured.Ticker != "AAPL" {
		t.Errorf("expected normalised ticker AAPL, got %q", captured.Ticker)
	}
	if auth != "Bearer secret" {
		t.Errorf("expected bearer header, got %q", auth)
	}
	if quote.Symbol != "AAPL" || quote.Price != 187.25 || quote.Provider != "yahoo_finance" {
		t.Errorf("unexpected quote: %+v", quote)
	}
	want := time.Date(2024, 3, 28, 15, 4, 5, 123456000, time.UTC)
	if !quote.Timestamp.Equal(want) {
		t.Errorf("expected timestamp %v, got %v", want, quote.Timestamp)
	}
	if quote.FetchedAt.IsZero() {
		t.Error("expected FetchedAt to be set")
	}
}

func TestGetPrice_EmptySymbol(t *testing.T) {
	client := NewClient("http://unused")
	_, err := client.GetPrice(context.Background(), "   ")
	if !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestGetPrice_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("{not json"))
			},
		},
		{
			name: "no price",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "message": "No price data found"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewClient(srv.URL).GetPrice(context.Background(), "MSFT")
			if !errors.Is(err, models.ErrUpstreamUnavailable) {
				t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
			}
		})
	}
}

func TestGetPrice_StatusCarriedInAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorised", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetPrice(context.Background(), "MSFT")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError in chain, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", apiErr.StatusCode)
	}
}

func TestGetPrice_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, WithTimeout(time.Second)).GetPrice(context.Background(), "MSFT")
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}
