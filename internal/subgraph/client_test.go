package subgraph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListCoinsCallsCorrectEndpoint(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)

	var capturedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path + "?" + r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]Coin{{Pair: "0xAAA", Name: "Test", Symbol: "TST"}})
	}))
	defer server.Close()

	client := New(server.URL, log)
	coins, err := client.ListCoins(context.Background(), SortMarketCap, 10, 0)

	require.NoError(t, err)
	require.Len(t, coins, 1)
	assert.Equal(t, "0xAAA", coins[0].Pair)
	assert.Contains(t, capturedPath, "/coins?")
	assert.Contains(t, capturedPath, "sort=marketCap")
}

func TestGetCoinReturnsSingleRecord(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/0xAAA", r.URL.Path)
		json.NewEncoder(w).Encode(Coin{Pair: "0xAAA", Symbol: "TST"})
	}))
	defer server.Close()

	client := New(server.URL, log)
	coin, err := client.GetCoin(context.Background(), "0xAAA")

	require.NoError(t, err)
	assert.Equal(t, "TST", coin.Symbol)
}

func TestEthUsdParsesPriceIntoRat(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ethusd", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"price": "3456.78"})
	}))
	defer server.Close()

	client := New(server.URL, log)
	price, err := client.EthUsd(context.Background())

	require.NoError(t, err)
	f, _ := price.Float64()
	assert.InDelta(t, 3456.78, f, 0.001)
}

func TestEthUsdRejectsMalformedPrice(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"price": "not-a-number"})
	}))
	defer server.Close()

	client := New(server.URL, log)
	_, err := client.EthUsd(context.Background())
	assert.Error(t, err)
}

func TestGetJSONSurfacesHTTPErrorStatus(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, log)
	_, err := client.GetCoin(context.Background(), "0xAAA")
	assert.Error(t, err)
}
