// Package report renders the informational breakdowns of a swap quote:
// liquidity source mix, token transfer taxes and monetization (affiliate
// fee, trade surplus). Every routine skips silently when its field is absent
// from the quote.
package report

import (
	"fmt"
	"io"
	"math/big"

	"github.com/ggonzalez94/swapx/internal/model"
	"github.com/ggonzalez94/swapx/internal/zeroex"
)

// Fills converts route fills to reportable percentages. A fill's share is
// proportionBps/100; shares over a route sum to roughly 100%.
func Fills(route *zeroex.Route) []model.RouteFill {
	if route == nil || len(route.Fills) == 0 {
		return nil
	}
	out := make([]model.RouteFill, 0, len(route.Fills))
	for _, fill := range route.Fills {
		bps := fill.ProportionBps.Int64()
		out = append(out, model.RouteFill{
			Source:        fill.Source,
			ProportionBps: bps,
			Percent:       float64(bps) / 100,
		})
	}
	return out
}

// Taxes returns one entry per token that carries a nonzero buy or sell tax.
// Gating compares the raw basis-point integers, never formatted strings.
func Taxes(md *zeroex.TokenMetadata, buyToken, sellToken string) []model.TokenTax {
	if md == nil {
		return nil
	}
	var out []model.TokenTax
	for _, entry := range []struct {
		token string
		taxes zeroex.TokenTaxes
	}{
		{buyToken, md.BuyToken},
		{sellToken, md.SellToken},
	} {
		buyBps := entry.taxes.BuyTaxBps.Int64()
		sellBps := entry.taxes.SellTaxBps.Int64()
		if buyBps == 0 && sellBps == 0 {
			continue
		}
		out = append(out, model.TokenTax{
			Token:      entry.token,
			BuyTaxBps:  buyBps,
			SellTaxBps: sellBps,
			BuyTaxPct:  float64(buyBps) / 100,
			SellTaxPct: float64(sellBps) / 100,
		})
	}
	return out
}

// WriteLiquidity prints the liquidity source breakdown.
func WriteLiquidity(w io.Writer, fills []model.RouteFill) {
	if len(fills) == 0 {
		return
	}
	fmt.Fprintf(w, "%d liquidity source(s)\n", len(fills))
	for _, fill := range fills {
		fmt.Fprintf(w, "  %s: %.2f%%\n", fill.Source, fill.Percent)
	}
}

// WriteTaxes prints one line per taxed token.
func WriteTaxes(w io.Writer, taxes []model.TokenTax) {
	for _, tax := range taxes {
		fmt.Fprintf(w, "%s taxes: buy %.2f%%, sell %.2f%%\n", tax.Token, tax.BuyTaxPct, tax.SellTaxPct)
	}
}

// WriteMonetization prints the affiliate fee when the quote reports one and
// the trade surplus only when it is strictly positive.
func WriteMonetization(w io.Writer, affiliateFeeBps *int64, tradeSurplus string) {
	if affiliateFeeBps != nil {
		fmt.Fprintf(w, "affiliate fee: %.2f%%\n", float64(*affiliateFeeBps)/100)
	}
	if surplus, ok := new(big.Int).SetString(tradeSurplus, 10); ok && surplus.Sign() > 0 {
		fmt.Fprintf(w, "trade surplus: %s\n", surplus.String())
	}
}
