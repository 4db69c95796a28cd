package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentdex/pkg/httpclient"
	"agentdex/pkg/types"
)

const (
	solMint  = "So11111111111111111111111111111111111111112"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

type swapCounter struct {
	succeeded int
	failed    int
}

func (s *swapCounter) RecordSwap(success bool) {
	if success {
		s.succeeded++
	} else {
		s.failed++
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*AgentDEXClient, *swapCounter) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	counter := &swapCounter{}
	return NewAgentDEXClient(Config{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		SwapRecorder: counter,
	}), counter
}

func TestQuote(t *testing.T) {
	t.Run("resolves symbols and sends query parameters", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/quote", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
			q := r.URL.Query()
			assert.Equal(t, usdcMint, q.Get("inputMint"))
			assert.Equal(t, solMint, q.Get("outputMint"))
			assert.Equal(t, "100000000", q.Get("amount"))
			assert.Equal(t, "50", q.Get("slippageBps"))
			w.Write([]byte(`{"outputAmount":"1500000000","priceImpactPct":0.12,"otherAmountThreshold":"1492500000"}`))
		})

		quote, err := client.Quote(context.Background(), types.QuoteRequest{
			InputToken:  "usdc",
			OutputToken: "SOL",
			Amount:      100_000_000,
		})
		require.NoError(t, err)
		assert.Equal(t, usdcMint, quote.InputMint)
		assert.Equal(t, solMint, quote.OutputMint)
		assert.Equal(t, "100000000", quote.InputAmount)
		assert.Equal(t, "1500000000", quote.OutputAmount)
		assert.InDelta(t, 0.12, quote.PriceImpactPct, 1e-9)
		assert.Equal(t, "1492500000", quote.OtherAmountThreshold)
	})

	t.Run("explicit slippage overrides the default", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "125", r.URL.Query().Get("slippageBps"))
			w.Write([]byte(`{}`))
		})

		_, err := client.Quote(context.Background(), types.QuoteRequest{InputToken: "SOL", OutputToken: "USDC", Amount: 1, SlippageBps: 125})
		require.NoError(t, err)
	})

	t.Run("missing fields fall back to defaults", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		})

		quote, err := client.Quote(context.Background(), types.QuoteRequest{InputToken: "SOL", OutputToken: "USDC", Amount: 42})
		require.NoError(t, err)
		assert.Equal(t, solMint, quote.InputMint)
		assert.Equal(t, usdcMint, quote.OutputMint)
		assert.Equal(t, "42", quote.InputAmount)
		assert.Equal(t, "0", quote.OutputAmount)
		assert.Equal(t, 0.0, quote.PriceImpactPct)
		assert.Equal(t, "0", quote.OtherAmountThreshold)
		assert.JSONEq(t, `{}`, string(quote.Raw))
	})

	t.Run("string and numeric upstream fields are both accepted", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"inputMint":"custom-in-mint","inAmount":"7","outputAmount":1500000000,"priceImpactPct":"0.0031"}`))
		})

		quote, err := client.Quote(context.Background(), types.QuoteRequest{InputToken: "SOL", OutputToken: "USDC", Amount: 7})
		require.NoError(t, err)
		assert.Equal(t, "custom-in-mint", quote.InputMint)
		assert.Equal(t, "1500000000", quote.OutputAmount)
		assert.InDelta(t, 0.0031, quote.PriceImpactPct, 1e-12)
	})

	t.Run("non-2xx is returned as an error with status and body", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"error":"no route"}`))
		})

		quote, err := client.Quote(context.Background(), types.QuoteRequest{InputToken: "SOL", OutputToken: "BONK", Amount: 1})
		require.Error(t, err)
		assert.Nil(t, quote)

		var httpErr *httpclient.HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, http.StatusUnprocessableEntity, httpErr.StatusCode)
		assert.Contains(t, err.Error(), "no route")
	})

	t.Run("malformed JSON is an error", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>`))
		})

		_, err := client.Quote(context.Background(), types.QuoteRequest{InputToken: "SOL", OutputToken: "USDC", Amount: 1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed quote response")
	})

	t.Run("trailing data after the JSON object is an error", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"outputAmount":"5"} not json`))
		})

		quote, err := client.Quote(context.Background(), types.QuoteRequest{InputToken: "SOL", OutputToken: "USDC", Amount: 1})
		require.Error(t, err)
		assert.Nil(t, quote)
		assert.Contains(t, err.Error(), "malformed quote response")
	})
}

func TestExecuteSwap(t *testing.T) {
	quote := &types.Quote{
		InputMint:      usdcMint,
		OutputMint:     solMint,
		InputAmount:    "100000000",
		OutputAmount:   "1500000000",
		PriceImpactPct: 0.1,
		Raw:            json.RawMessage(`{"outputAmount":"1500000000","routePlan":[{"percent":100}]}`),
	}

	t.Run("sends the raw quote verbatim", func(t *testing.T) {
		client, counter := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/swap", r.URL.Path)

			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			var body struct {
				QuoteResponse   json.RawMessage `json:"quoteResponse"`
				UserPublicKey   string          `json:"userPublicKey"`
				DynamicSlippage bool            `json:"dynamicSlippage"`
			}
			require.NoError(t, json.Unmarshal(data, &body))
			assert.JSONEq(t, string(quote.Raw), string(body.QuoteResponse))
			assert.Equal(t, "wallet-pubkey", body.UserPublicKey)
			assert.True(t, body.DynamicSlippage)

			w.Write([]byte(`{"swapTransaction":"sig123"}`))
		})

		result := client.ExecuteSwap(context.Background(), types.SwapRequest{Quote: quote, Wallet: "wallet-pubkey"})
		assert.True(t, result.Success)
		assert.Equal(t, "sig123", result.Signature)
		assert.Equal(t, "100000000", result.InputAmount)
		assert.Equal(t, "1500000000", result.OutputAmount)
		assert.Equal(t, 0.1, result.PriceImpactPct)
		assert.Empty(t, result.Error)
		assert.Equal(t, 1, counter.succeeded)
	})

	t.Run("static slippage disables dynamic slippage", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, false, body["dynamicSlippage"])
			w.Write([]byte(`{}`))
		})

		result := client.ExecuteSwap(context.Background(), types.SwapRequest{Quote: quote, Wallet: "w", StaticSlippage: true})
		assert.True(t, result.Success)
		assert.Empty(t, result.Signature, "absent swapTransaction is allowed")
	})

	t.Run("upstream 500 becomes a failed result", func(t *testing.T) {
		client, counter := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("internal error"))
		})

		result := client.ExecuteSwap(context.Background(), types.SwapRequest{Quote: quote, Wallet: "w"})
		require.NotNil(t, result)
		assert.False(t, result.Success)
		assert.Empty(t, result.Signature)
		assert.Equal(t, "0", result.OutputAmount)
		assert.Equal(t, "100000000", result.InputAmount)
		assert.NotEmpty(t, result.Error)
		assert.Contains(t, result.Error, "500")
		assert.Contains(t, result.Error, "internal error")
		assert.Equal(t, 1, counter.failed)
	})

	t.Run("malformed response becomes a failed result", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`null`))
		})

		result := client.ExecuteSwap(context.Background(), types.SwapRequest{Quote: quote, Wallet: "w"})
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "malformed swap response")
	})

	t.Run("network failure becomes a failed result", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()
		client := NewAgentDEXClient(Config{BaseURL: server.URL})

		result := client.ExecuteSwap(context.Background(), types.SwapRequest{Quote: quote, Wallet: "w"})
		assert.False(t, result.Success)
		assert.NotEmpty(t, result.Error)
	})

	t.Run("nil quote becomes a failed result", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected")
		})

		result := client.ExecuteSwap(context.Background(), types.SwapRequest{Wallet: "w"})
		assert.False(t, result.Success)
		assert.Equal(t, "quote is required", result.Error)
	})
}

func TestQuoteThenSwap(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			w.Write([]byte(`{"inputMint":"` + usdcMint + `","outputMint":"` + solMint + `","inputAmount":"100000000","outputAmount":"1500000000","priceImpactPct":0.05}`))
		case "/swap":
			w.Write([]byte(`{"swapTransaction":"sig123"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	quote, err := client.Quote(ctx, types.QuoteRequest{InputToken: "USDC", OutputToken: "SOL", Amount: 100_000_000})
	require.NoError(t, err)

	result := client.ExecuteSwap(ctx, types.SwapRequest{Quote: quote, Wallet: "wallet"})
	assert.True(t, result.Success)
	assert.Equal(t, "sig123", result.Signature)
	assert.Equal(t, "1500000000", result.OutputAmount)
}

func TestGetPortfolio(t *testing.T) {
	t.Run("returns the decoded payload", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/portfolio/wallet-123", r.URL.Path)
			assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
			w.Write([]byte(`{"totalValueUsd":1000,"tokens":[{"symbol":"SOL","balance":5,"valueUsd":750}],"extra":"kept"}`))
		})

		portfolio, err := client.GetPortfolio(context.Background(), "wallet-123")
		require.NoError(t, err)
		assert.Equal(t, json.Number("1000"), portfolio["totalValueUsd"])
		assert.Equal(t, "kept", portfolio["extra"])
		assert.Len(t, portfolio["tokens"], 1)
	})

	t.Run("empty wallet is rejected without a request", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected")
		})

		_, err := client.GetPortfolio(context.Background(), "")
		assert.ErrorIs(t, err, ErrEmptyWallet)
	})

	t.Run("upstream errors are returned", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("unknown wallet"))
		})

		_, err := client.GetPortfolio(context.Background(), "wallet-123")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
		assert.Contains(t, err.Error(), "unknown wallet")
	})

	t.Run("trailing data is a malformed response", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"totalValueUsd":1}{"totalValueUsd":2}`))
		})

		_, err := client.GetPortfolio(context.Background(), "wallet-123")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed portfolio response")
	})
}

func TestGetPrices(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prices", r.URL.Path)
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		assert.Equal(t, []string{solMint, usdcMint, "custom"}, r.URL.Query()["ids"])
		w.Write([]byte(`{"` + solMint + `":150.25,"` + usdcMint + `":1}`))
	})

	prices, err := client.GetPrices(context.Background(), []string{"SOL", "usdc", "custom"})
	require.NoError(t, err)
	assert.Equal(t, json.Number("150.25"), prices[solMint])
	assert.Equal(t, json.Number("1"), prices[usdcMint])
}

func TestNewAgentDEXClientDefaults(t *testing.T) {
	client := NewAgentDEXClient(Config{})
	assert.Equal(t, DefaultBaseURL, client.http.GetBaseURL())
	assert.Equal(t, DefaultSlippageBps, client.defaultSlippageBps)
}
