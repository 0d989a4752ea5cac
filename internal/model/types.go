package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string      `json:"request_id"`
	Timestamp time.Time   `json:"timestamp"`
	Command   string      `json:"command"`
	Upstream  []CallInfo  `json:"upstream,omitempty"`
	Cache     CacheStatus `json:"cache"`
}

// CallInfo records one upstream call made while serving a command.
type CallInfo struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

type CacheStatus struct {
	Status string `json:"status"`
	AgeMS  int64  `json:"age_ms"`
	Stale  bool   `json:"stale"`
}

type ProviderInfo struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	RequiresKey   bool     `json:"requires_key"`
	KeyEnvVarName string   `json:"key_env_var,omitempty"`
	Capabilities  []string `json:"capabilities"`
}

// SourceList is the payload of `sources list`.
type SourceList struct {
	ChainID int64    `json:"chain_id"`
	Count   int      `json:"count"`
	Sources []string `json:"sources"`
}

// RouteFill is one liquidity venue's share of a swap route.
type RouteFill struct {
	Source        string  `json:"source"`
	ProportionBps int64   `json:"proportion_bps"`
	Percent       float64 `json:"percent"`
}

// TokenTax reports a token's transfer taxes in basis points and percent.
type TokenTax struct {
	Token      string  `json:"token"`
	BuyTaxBps  int64   `json:"buy_tax_bps"`
	SellTaxBps int64   `json:"sell_tax_bps"`
	BuyTaxPct  float64 `json:"buy_tax_pct"`
	SellTaxPct float64 `json:"sell_tax_pct"`
}

// SwapSummary is the reported view of a price or quote response.
type SwapSummary struct {
	ChainID         int64       `json:"chain_id"`
	SellToken       string      `json:"sell_token"`
	BuyToken        string      `json:"buy_token"`
	SellAmount      string      `json:"sell_amount"`
	BuyAmount       string      `json:"buy_amount"`
	Fills           []RouteFill `json:"fills,omitempty"`
	Taxes           []TokenTax  `json:"taxes,omitempty"`
	AffiliateFeeBps int64       `json:"affiliate_fee_bps,omitempty"`
	TradeSurplus    string      `json:"trade_surplus,omitempty"`
	ApprovalNeeded  bool        `json:"approval_needed"`
	ApprovalSpender string      `json:"approval_spender,omitempty"`
	PermitRequired  bool        `json:"permit_required"`
}

// ExecuteResult is the payload of `swap execute`.
type ExecuteResult struct {
	RunID         string      `json:"run_id"`
	ChainID       int64       `json:"chain_id"`
	Summary       SwapSummary `json:"summary"`
	ApprovalTx    string      `json:"approval_tx,omitempty"`
	SwapTx        string      `json:"swap_tx,omitempty"`
	SwapTxLink    string      `json:"swap_tx_link,omitempty"`
	Submitted     bool        `json:"submitted"`
	SkippedReason string      `json:"skipped_reason,omitempty"`
}
