package models

import "time"

// Quote is a price observation for a symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Timestamp time.Time `json:"timestamp"`  // as reported by the provider
	FetchedAt time.Time `json:"fetched_at"` // when this service received it
	Stale     bool      `json:"stale"`      // served from cache after an upstream failure
}
