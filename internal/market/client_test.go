package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&Config{BaseURL: srv.URL, APIKey: "demo"})
}

func TestClient_ListMarkets(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/markets", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "usd", q.Get("vs_currency"))
		assert.Equal(t, "market_cap_desc", q.Get("order"))
		assert.Equal(t, "250", q.Get("per_page"))
		assert.Equal(t, "1", q.Get("page"))
		assert.Equal(t, "false", q.Get("sparkline"))
		assert.Equal(t, "demo", r.Header.Get("x-cg-demo-api-key"))

		_, _ = w.Write([]byte(`[
			{"id":"bitcoin","name":"Bitcoin","symbol":"btc","image":"https://img/btc.png",
			 "current_price":64000.5,"market_cap":1200000000000,"total_volume":3000000,
			 "price_change_percentage_24h":-1.25,"circulating_supply":19000000,"total_supply":21000000},
			{"id":"ethereum","name":"Ethereum","symbol":"eth","image":"https://img/eth.png",
			 "current_price":3000,"market_cap":360000000000,"total_volume":1000000,
			 "price_change_percentage_24h":2.5,"circulating_supply":120000000,"total_supply":null}
		]`))
	})

	coins, err := client.ListMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, coins, 2)

	assert.Equal(t, "bitcoin", coins[0].ID)
	assert.Equal(t, 64000.5, coins[0].CurrentPrice)
	assert.Equal(t, -1.25, coins[0].PriceChangePercentage24h)
	require.NotNil(t, coins[0].TotalSupply)
	assert.Equal(t, 21000000.0, *coins[0].TotalSupply)
	assert.Nil(t, coins[1].TotalSupply)
}

func TestClient_GetDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/bitcoin", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"id":"bitcoin","name":"Bitcoin","symbol":"btc",
			"image":{"large":"https://img/btc-large.png"},
			"description":{"en":"<a href=\"x\">Bitcoin</a> is a currency."},
			"market_data":{
				"current_price":{"usd":64000},"price_change_percentage_24h":1.5,
				"market_cap":{"usd":1200},"total_volume":{"usd":300},
				"circulating_supply":19000000,"total_supply":21000000}
		}`))
	})

	detail, err := client.GetDetail(context.Background(), "bitcoin")
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "Bitcoin", detail.Name)
	assert.Equal(t, "https://img/btc-large.png", detail.Image.Large)
	assert.Equal(t, 64000.0, detail.MarketData.CurrentPrice.USD)
	assert.Equal(t, 1200.0, detail.MarketData.MarketCap.USD)
	assert.Contains(t, detail.Description.En, "is a currency")
}

func TestClient_GetDetailNull(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("null"))
	})

	detail, err := client.GetDetail(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, detail)
}

func TestClient_FailuresAreOpaque(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"rate limited", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}},
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"coin not found"}`))
		}},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)

			_, err := client.ListMarkets(context.Background())
			assert.ErrorIs(t, err, ErrRequestFailed)

			_, err = client.GetDetail(context.Background(), "bitcoin")
			assert.ErrorIs(t, err, ErrRequestFailed)
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewClient(&Config{BaseURL: srv.URL})
	_, err := client.ListMarkets(context.Background())
	assert.ErrorIs(t, err, ErrRequestFailed)
}
