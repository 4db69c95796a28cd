package client

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"agentdex/pkg/httpclient"
	"agentdex/pkg/logger"
	"agentdex/pkg/tokens"
	"agentdex/pkg/types"
)

const (
	DefaultBaseURL     = "https://agentdex.solana-clawd.dev"
	DefaultSlippageBps = 50 // 0.5%
	UserAgent          = "agentdex-cli/0.1"

	quoteEndpoint     = "/quote"
	swapEndpoint      = "/swap"
	portfolioEndpoint = "/portfolio/"
	pricesEndpoint    = "/prices"
)

// balances and prices must always be fresh
var noCache = httpclient.WithHeader("Cache-Control", "no-cache")

// ErrEmptyWallet is returned when a wallet identifier is required but missing
var ErrEmptyWallet = errors.New("wallet is required")

// SwapRecorder observes swap outcomes
type SwapRecorder interface {
	RecordSwap(success bool)
}

// Config holds the immutable settings of a client
type Config struct {
	APIKey             string
	BaseURL            string
	DefaultSlippageBps int
	SwapRecorder       SwapRecorder
}

// AgentDEXClient talks to the AgentDEX quote/swap aggregation API
type AgentDEXClient struct {
	http               *httpclient.HTTPClient
	defaultSlippageBps int
	swaps              SwapRecorder
}

// NewAgentDEXClient creates a new AgentDEX API client. Extra options are
// applied after the base URL and bearer token.
func NewAgentDEXClient(cfg Config, opts ...httpclient.ClientOption) *AgentDEXClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	slippage := cfg.DefaultSlippageBps
	if slippage <= 0 {
		slippage = DefaultSlippageBps
	}

	options := append([]httpclient.ClientOption{
		httpclient.WithBaseURL(baseURL),
		httpclient.WithBearerToken(cfg.APIKey),
		httpclient.WithDefaultHeader("User-Agent", UserAgent),
	}, opts...)

	return &AgentDEXClient{
		http:               httpclient.NewHTTPClient(options...),
		defaultSlippageBps: slippage,
		swaps:              cfg.SwapRecorder,
	}
}

// Quote requests a swap quote. Missing response fields fall back to the
// request values or zero.
func (c *AgentDEXClient) Quote(ctx context.Context, req types.QuoteRequest) (*types.Quote, error) {
	inputMint := tokens.Resolve(req.InputToken)
	outputMint := tokens.Resolve(req.OutputToken)
	amount := strconv.FormatUint(req.Amount, 10)

	slippage := req.SlippageBps
	if slippage == 0 {
		slippage = c.defaultSlippageBps
	}

	body, err := c.http.Get(ctx, quoteEndpoint,
		httpclient.WithQueryParam("inputMint", inputMint),
		httpclient.WithQueryParam("outputMint", outputMint),
		httpclient.WithQueryParam("amount", amount),
		httpclient.WithQueryParam("slippageBps", strconv.Itoa(slippage)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get quote")
	}

	var fields map[string]any
	if err := httpclient.DecodeJSON(body, &fields); err != nil {
		return nil, errors.Wrap(err, "malformed quote response")
	}

	return &types.Quote{
		InputMint:            stringField(fields, "inputMint", inputMint),
		OutputMint:           stringField(fields, "outputMint", outputMint),
		InputAmount:          stringField(fields, "inputAmount", amount),
		OutputAmount:         stringField(fields, "outputAmount", "0"),
		PriceImpactPct:       floatField(fields, "priceImpactPct"),
		OtherAmountThreshold: stringField(fields, "otherAmountThreshold", "0"),
		Raw:                  json.RawMessage(body),
	}, nil
}

type swapBody struct {
	QuoteResponse   json.RawMessage `json:"quoteResponse"`
	UserPublicKey   string          `json:"userPublicKey"`
	DynamicSlippage bool            `json:"dynamicSlippage"`
}

// ExecuteSwap submits a quote for execution. It never returns an error:
// every failure is reported as an unsuccessful SwapResult.
func (c *AgentDEXClient) ExecuteSwap(ctx context.Context, req types.SwapRequest) *types.SwapResult {
	quote := req.Quote
	if quote == nil {
		return c.swapFailed(&types.Quote{}, errors.New("quote is required"))
	}

	body, err := c.http.Post(ctx, swapEndpoint, swapBody{
		QuoteResponse:   quote.Raw,
		UserPublicKey:   req.Wallet,
		DynamicSlippage: !req.StaticSlippage,
	})
	if err != nil {
		return c.swapFailed(quote, errors.Wrap(err, "swap request failed"))
	}

	var fields map[string]any
	if err := httpclient.DecodeJSON(body, &fields); err != nil {
		return c.swapFailed(quote, errors.Wrap(err, "malformed swap response"))
	}
	if fields == nil {
		return c.swapFailed(quote, errors.New("malformed swap response: expected a JSON object"))
	}

	result := &types.SwapResult{
		Success:        true,
		Signature:      stringField(fields, "swapTransaction", ""),
		InputAmount:    quote.InputAmount,
		OutputAmount:   quote.OutputAmount,
		PriceImpactPct: quote.PriceImpactPct,
	}
	c.recordSwap(true)

	logger.Debug("Swap executed",
		zap.String("input_mint", quote.InputMint),
		zap.String("output_mint", quote.OutputMint),
		zap.String("input_amount", quote.InputAmount))

	return result
}

// GetPortfolio returns the wallet's portfolio exactly as the API reports it
func (c *AgentDEXClient) GetPortfolio(ctx context.Context, wallet string) (types.Portfolio, error) {
	if wallet == "" {
		return nil, ErrEmptyWallet
	}

	body, err := c.http.Get(ctx, portfolioEndpoint+url.PathEscape(wallet), noCache)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get portfolio for %s", wallet)
	}

	var portfolio types.Portfolio
	if err := httpclient.DecodeJSON(body, &portfolio); err != nil {
		return nil, errors.Wrap(err, "malformed portfolio response")
	}
	return portfolio, nil
}

// GetPrices returns USD prices keyed by mint, exactly as the API reports them
func (c *AgentDEXClient) GetPrices(ctx context.Context, symbols []string) (types.Prices, error) {
	params := make([]httpclient.RequestOption, 0, len(symbols)+1)
	params = append(params, noCache)
	for _, symbol := range symbols {
		params = append(params, httpclient.WithQueryParam("ids", tokens.Resolve(symbol)))
	}

	body, err := c.http.Get(ctx, pricesEndpoint, params...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get prices")
	}

	var prices types.Prices
	if err := httpclient.DecodeJSON(body, &prices); err != nil {
		return nil, errors.Wrap(err, "malformed prices response")
	}
	return prices, nil
}

func (c *AgentDEXClient) swapFailed(quote *types.Quote, err error) *types.SwapResult {
	c.recordSwap(false)
	logger.Warn("Swap failed",
		zap.String("input_mint", quote.InputMint),
		zap.String("output_mint", quote.OutputMint),
		zap.Error(err))

	return &types.SwapResult{
		Success:        false,
		InputAmount:    quote.InputAmount,
		OutputAmount:   "0",
		PriceImpactPct: quote.PriceImpactPct,
		Error:          err.Error(),
	}
}

func (c *AgentDEXClient) recordSwap(success bool) {
	if c.swaps != nil {
		c.swaps.RecordSwap(success)
	}
}

func stringField(fields map[string]any, key, fallback string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return fallback
	}
	s, err := types.ToString(v)
	if err != nil {
		return fallback
	}
	return s
}

func floatField(fields map[string]any, key string) float64 {
	v, ok := fields[key]
	if !ok || v == nil {
		return 0
	}
	f, err := types.ToFloat64(v)
	if err != nil {
		return 0
	}
	return f
}
