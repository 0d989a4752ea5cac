package zeroex

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	clierr "github.com/ggonzalez94/swapx/internal/errors"
	"github.com/ggonzalez94/swapx/internal/httpx"
	"github.com/ggonzalez94/swapx/internal/model"
	"github.com/ggonzalez94/swapx/internal/registry"
)

// Client talks to the 0x swap aggregation API. All endpoints are read-only
// GETs; the firm quote is executable but execution happens over chain RPC,
// not through this client.
type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
}

func New(httpClient *httpx.Client, baseURL, apiKey string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = registry.ZeroExBaseURL
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

func (c *Client) Info() model.ProviderInfo {
	return model.ProviderInfo{
		Name:          "0x",
		Type:          "swap",
		RequiresKey:   true,
		KeyEnvVarName: "SWAPX_ZEROEX_API_KEY",
		Capabilities: []string{
			"swap.sources",
			"swap.price",
			"swap.quote",
			"swap.execute",
		},
	}
}

// SwapRequest holds the query parameters shared by the price and quote
// endpoints. AffiliateFeeBps and SurplusCollection are the monetization
// knobs; both are omitted from the query string when unset.
type SwapRequest struct {
	ChainID           int64
	SellToken         string
	BuyToken          string
	SellAmount        string
	Taker             string
	AffiliateFeeBps   int64
	SurplusCollection bool
}

func (r SwapRequest) values() url.Values {
	vals := url.Values{}
	vals.Set("chainId", strconv.FormatInt(r.ChainID, 10))
	vals.Set("sellToken", r.SellToken)
	vals.Set("buyToken", r.BuyToken)
	vals.Set("sellAmount", r.SellAmount)
	vals.Set("taker", r.Taker)
	if r.AffiliateFeeBps > 0 {
		vals.Set("affiliateFee", strconv.FormatInt(r.AffiliateFeeBps, 10))
	}
	if r.SurplusCollection {
		vals.Set("surplusCollection", "true")
	}
	return vals
}

func (r SwapRequest) validate() error {
	if r.ChainID <= 0 {
		return clierr.New(clierr.CodeUsage, "swap request requires a chain id")
	}
	if strings.TrimSpace(r.SellToken) == "" || strings.TrimSpace(r.BuyToken) == "" {
		return clierr.New(clierr.CodeUsage, "swap request requires sell and buy tokens")
	}
	if strings.TrimSpace(r.SellAmount) == "" {
		return clierr.New(clierr.CodeUsage, "swap request requires a sell amount in base units")
	}
	if strings.TrimSpace(r.Taker) == "" {
		return clierr.New(clierr.CodeUsage, "swap request requires the taker address")
	}
	return nil
}

// Sources lists the liquidity venues available on a chain, sorted by name.
func (c *Client) Sources(ctx context.Context, chainID int64) ([]string, error) {
	vals := url.Values{}
	vals.Set("chainId", strconv.FormatInt(chainID, 10))

	var resp SourcesResponse
	if err := c.get(ctx, registry.ZeroExSourcesPath, vals, &resp); err != nil {
		return nil, err
	}
	if resp.Sources == nil {
		return nil, clierr.New(clierr.CodeUpstream, "sources response missing sources map")
	}
	names := make([]string, 0, len(resp.Sources))
	for name := range resp.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Price fetches an indicative price. The response always carries an issues
// object; its absence means the upstream shape changed and is an error here
// rather than a downstream field-access fault.
func (c *Client) Price(ctx context.Context, req SwapRequest) (*Price, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	var price Price
	if err := c.get(ctx, registry.ZeroExPricePath, req.values(), &price); err != nil {
		return nil, err
	}
	if price.Issues == nil {
		return nil, clierr.New(clierr.CodeUpstream, "price response missing issues object")
	}
	if strings.TrimSpace(price.BuyAmount) == "" {
		return nil, clierr.New(clierr.CodeUpstream, "price response missing buy amount")
	}
	return &price, nil
}

// Quote fetches a firm, executable quote for the same parameters.
func (c *Client) Quote(ctx context.Context, req SwapRequest) (*Quote, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	var quote Quote
	if err := c.get(ctx, registry.ZeroExQuotePath, req.values(), &quote); err != nil {
		return nil, err
	}
	if quote.Transaction == nil || strings.TrimSpace(quote.Transaction.To) == "" {
		return nil, clierr.New(clierr.CodeUpstream, "quote response missing transaction")
	}
	if quote.Permit2 != nil && quote.Permit2.EIP712 == nil {
		return nil, clierr.New(clierr.CodeUpstream, "quote permit2 object missing eip712 payload")
	}
	return &quote, nil
}

func (c *Client) get(ctx context.Context, path string, vals url.Values, out any) error {
	if strings.TrimSpace(c.apiKey) == "" {
		return clierr.New(clierr.CodeConfig, "missing 0x API key (set SWAPX_ZEROEX_API_KEY)")
	}
	endpoint := c.baseURL + path + "?" + vals.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "build aggregator request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(registry.ZeroExAPIKeyHeader, c.apiKey)
	req.Header.Set(registry.ZeroExVersionHeader, registry.ZeroExAPIVersion)

	_, err = c.http.DoJSON(ctx, req, out)
	return err
}
