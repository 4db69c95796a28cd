package types

import "encoding/json"

// QuoteRequest describes a quote to request from the aggregator
type QuoteRequest struct {
	InputToken  string // Symbol (e.g. "USDC") or mint address
	OutputToken string // Symbol (e.g. "SOL") or mint address
	Amount      uint64 // Smallest-unit amount of the input token
	SlippageBps int    // 0 means the client's configured default
}

// Quote is a priced route returned by the aggregator. Raw holds the
// upstream body verbatim; it is sent back unchanged when the quote is executed.
type Quote struct {
	InputMint            string          `json:"input_mint"`
	OutputMint           string          `json:"output_mint"`
	InputAmount          string          `json:"input_amount"`
	OutputAmount         string          `json:"output_amount"`
	PriceImpactPct       float64         `json:"price_impact_pct"`
	OtherAmountThreshold string          `json:"other_amount_threshold"`
	Raw                  json.RawMessage `json:"raw_response"`
}

// SwapRequest executes a previously obtained quote for a wallet
type SwapRequest struct {
	Quote          *Quote
	Wallet         string
	StaticSlippage bool // Disable the aggregator's dynamic slippage
}

// SwapResult is the terminal outcome of a swap execution
type SwapResult struct {
	Success        bool    `json:"success"`
	Signature      string  `json:"signature,omitempty"`
	InputAmount    string  `json:"input_amount"`
	OutputAmount   string  `json:"output_amount"`
	PriceImpactPct float64 `json:"price_impact_pct"`
	Error          string  `json:"error,omitempty"`
}

// Portfolio is the aggregator's portfolio payload exactly as decoded
type Portfolio map[string]any

// Prices is the aggregator's price payload exactly as decoded
type Prices map[string]any

// Allocation is a target share of the portfolio for one token
type Allocation struct {
	Token   string  `json:"token"`
	Percent float64 `json:"percent"` // 0-100
}
