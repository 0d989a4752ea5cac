package zeroex

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// FlexInt64 decodes a JSON number that the aggregator serializes either as a
// bare integer or as a quoted decimal string.
type FlexInt64 int64

func (f *FlexInt64) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*f = 0
		return nil
	}
	raw = strings.Trim(raw, `"`)
	if raw == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("parse integer %q: %w", raw, err)
	}
	*f = FlexInt64(v)
	return nil
}

func (f FlexInt64) Int64() int64 { return int64(f) }

// SourcesResponse is the body of GET /swap/v1/sources.
type SourcesResponse struct {
	Sources map[string]json.RawMessage `json:"sources"`
}

// AllowanceIssue reports that the taker must grant a token-spend approval to
// Spender before the swap can settle.
type AllowanceIssue struct {
	Actual  string `json:"actual"`
	Spender string `json:"spender"`
}

type BalanceIssue struct {
	Token    string `json:"token"`
	Actual   string `json:"actual"`
	Expected string `json:"expected"`
}

type Issues struct {
	Allowance            *AllowanceIssue `json:"allowance"`
	Balance              *BalanceIssue   `json:"balance"`
	SimulationIncomplete bool            `json:"simulationIncomplete"`
}

// Fill is one liquidity venue's slice of the route. ProportionBps values over
// a route sum to roughly 10000; the sum is reported, never enforced.
type Fill struct {
	From          string    `json:"from"`
	To            string    `json:"to"`
	Source        string    `json:"source"`
	ProportionBps FlexInt64 `json:"proportionBps"`
}

type Route struct {
	Fills []Fill `json:"fills"`
}

type TokenTaxes struct {
	BuyTaxBps  FlexInt64 `json:"buyTaxBps"`
	SellTaxBps FlexInt64 `json:"sellTaxBps"`
}

type TokenMetadata struct {
	BuyToken  TokenTaxes `json:"buyToken"`
	SellToken TokenTaxes `json:"sellToken"`
}

// Permit2 carries the EIP-712 payload the taker must sign off-chain. The
// signature gets length-prefixed and appended to the swap calldata.
type Permit2 struct {
	Type   string              `json:"type"`
	Hash   string              `json:"hash"`
	EIP712 *apitypes.TypedData `json:"eip712"`
}

// Transaction is the executable call the quote endpoint returns. Gas,
// GasPrice and Value are decimal strings and may be empty.
type Transaction struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	Gas      string `json:"gas"`
	GasPrice string `json:"gasPrice"`
	Value    string `json:"value"`
}

// Price is the indicative response from /swap/permit2/price.
type Price struct {
	SellToken       string         `json:"sellToken"`
	BuyToken        string         `json:"buyToken"`
	SellAmount      string         `json:"sellAmount"`
	BuyAmount       string         `json:"buyAmount"`
	Route           *Route         `json:"route"`
	TokenMetadata   *TokenMetadata `json:"tokenMetadata"`
	Issues          *Issues        `json:"issues"`
	AffiliateFeeBps *FlexInt64     `json:"affiliateFeeBps"`
	TradeSurplus    string         `json:"tradeSurplus"`
}

// Quote is the firm response from /swap/permit2/quote.
type Quote struct {
	SellToken       string         `json:"sellToken"`
	BuyToken        string         `json:"buyToken"`
	SellAmount      string         `json:"sellAmount"`
	BuyAmount       string         `json:"buyAmount"`
	Route           *Route         `json:"route"`
	TokenMetadata   *TokenMetadata `json:"tokenMetadata"`
	Issues          *Issues        `json:"issues"`
	Permit2         *Permit2       `json:"permit2"`
	Transaction     *Transaction   `json:"transaction"`
	AffiliateFeeBps *FlexInt64     `json:"affiliateFeeBps"`
	TradeSurplus    string         `json:"tradeSurplus"`
}

// PermitRequired reports whether the quote demands an off-chain permit
// signature before submission.
func (q *Quote) PermitRequired() bool {
	return q != nil && q.Permit2 != nil && q.Permit2.EIP712 != nil
}
