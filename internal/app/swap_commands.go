package app

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/swapx/internal/errors"
	"github.com/ggonzalez94/swapx/internal/model"
	"github.com/ggonzalez94/swapx/internal/registry"
	"github.com/ggonzalez94/swapx/internal/report"
	"github.com/ggonzalez94/swapx/internal/workflow"
	"github.com/ggonzalez94/swapx/internal/zeroex"
)

// swapArgs are the flag values shared by the price, quote and execute
// subcommands.
type swapArgs struct {
	chain             string
	sellToken         string
	buyToken          string
	sellAmount        string
	taker             string
	affiliateFeeBps   int64
	surplusCollection bool
}

func (a *swapArgs) register(cmd *cobra.Command, withTaker bool) {
	cmd.Flags().StringVar(&a.chain, "chain", "", "Chain id or name (e.g. 8453 or base)")
	cmd.Flags().StringVar(&a.sellToken, "sell-token", "", "ERC-20 address of the token to sell")
	cmd.Flags().StringVar(&a.buyToken, "buy-token", "", "ERC-20 address of the token to buy")
	cmd.Flags().StringVar(&a.sellAmount, "sell-amount", "", "Sell amount in base units")
	cmd.Flags().Int64Var(&a.affiliateFeeBps, "affiliate-fee-bps", 0, "Affiliate fee in basis points (0 disables)")
	cmd.Flags().BoolVar(&a.surplusCollection, "surplus-collection", false, "Collect positive slippage as trade surplus")
	if withTaker {
		cmd.Flags().StringVar(&a.taker, "taker", "", "Taker address (defaults to the configured signing key)")
	}
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("sell-token")
	_ = cmd.MarkFlagRequired("buy-token")
	_ = cmd.MarkFlagRequired("sell-amount")
}

// resolve validates the shared flags into a swap request. When no taker was
// given it falls back to the address of the configured signing key.
func (s *runtimeState) resolveSwapRequest(args swapArgs) (registry.Chain, zeroex.SwapRequest, error) {
	chain, err := registry.ParseChain(args.chain)
	if err != nil {
		return registry.Chain{}, zeroex.SwapRequest{}, err
	}
	sellToken, err := registry.ParseTokenAddress(args.sellToken)
	if err != nil {
		return registry.Chain{}, zeroex.SwapRequest{}, err
	}
	buyToken, err := registry.ParseTokenAddress(args.buyToken)
	if err != nil {
		return registry.Chain{}, zeroex.SwapRequest{}, err
	}

	taker := args.taker
	if taker == "" {
		txSigner, err := s.loadSigner()
		if err != nil {
			return registry.Chain{}, zeroex.SwapRequest{}, clierr.Wrap(clierr.CodeConfig, "no --taker given and no signing key configured", err)
		}
		taker = txSigner.Address().Hex()
	}

	return chain, zeroex.SwapRequest{
		ChainID:           chain.ChainID,
		SellToken:         sellToken,
		BuyToken:          buyToken,
		SellAmount:        args.sellAmount,
		Taker:             taker,
		AffiliateFeeBps:   args.affiliateFeeBps,
		SurplusCollection: args.surplusCollection,
	}, nil
}

func (s *runtimeState) newSwapCommand() *cobra.Command {
	root := &cobra.Command{Use: "swap", Short: "Permit2 swap operations"}
	root.AddCommand(s.newSwapPriceCommand())
	root.AddCommand(s.newSwapQuoteCommand())
	root.AddCommand(s.newSwapExecuteCommand())
	return root
}

func (s *runtimeState) newSwapPriceCommand() *cobra.Command {
	var args swapArgs
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Fetch an indicative swap price",
		RunE: func(cmd *cobra.Command, _ []string) error {
			chain, req, err := s.resolveSwapRequest(args)
			if err != nil {
				return err
			}
			key := cacheKey(trimRootPath(cmd.CommandPath()), req)
			return s.runCachedCommand(trimRootPath(cmd.CommandPath()), key, 30*time.Second, func(ctx context.Context) (any, []model.CallInfo, error) {
				start := time.Now()
				price, err := s.aggregator.Price(ctx, req)
				calls := []model.CallInfo{{Name: "0x", Status: statusFromErr(err), LatencyMS: time.Since(start).Milliseconds()}}
				if err != nil {
					return nil, calls, err
				}
				return priceSummary(chain, req, price), calls, nil
			})
		},
	}
	args.register(cmd, true)
	return cmd
}

func (s *runtimeState) newSwapQuoteCommand() *cobra.Command {
	var args swapArgs
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Fetch a firm, executable swap quote (never cached)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			chain, req, err := s.resolveSwapRequest(args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()

			start := time.Now()
			quote, err := s.aggregator.Quote(ctx, req)
			calls := []model.CallInfo{{Name: "0x", Status: statusFromErr(err), LatencyMS: time.Since(start).Milliseconds()}}
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), quoteSummary(chain, req, quote), nil, cacheMetaBypass(), calls)
		},
	}
	args.register(cmd, true)
	return cmd
}

func (s *runtimeState) newSwapExecuteCommand() *cobra.Command {
	var args swapArgs
	var rpcURL string
	var listSources bool
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Price, approve, quote, sign and broadcast a permit2 swap",
		RunE: func(cmd *cobra.Command, _ []string) error {
			chain, err := registry.ParseChain(args.chain)
			if err != nil {
				return err
			}
			sellToken, err := registry.ParseTokenAddress(args.sellToken)
			if err != nil {
				return err
			}
			buyToken, err := registry.ParseTokenAddress(args.buyToken)
			if err != nil {
				return err
			}

			txSigner, err := s.loadSigner()
			if err != nil {
				return clierr.Wrap(clierr.CodeConfig, "load signing key", err)
			}
			backend, err := s.dialBackend(chain, rpcURL)
			if err != nil {
				return err
			}
			defer backend.Close()

			store, err := s.openRunStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()

			res, err := workflow.Run(ctx, workflow.Deps{
				API:      s.aggregator,
				Backend:  backend,
				Signer:   txSigner,
				Store:    store,
				Progress: s.runner.stderr,
			}, workflow.Params{
				Chain:             chain,
				SellToken:         sellToken,
				BuyToken:          buyToken,
				SellAmount:        args.sellAmount,
				AffiliateFeeBps:   args.affiliateFeeBps,
				SurplusCollection: args.surplusCollection,
				ListSources:       listSources,
			})
			s.lastWarnings = res.Warnings
			if err != nil {
				return err
			}

			payload := model.ExecuteResult{
				RunID:         res.Run.RunID,
				ChainID:       chain.ChainID,
				Summary:       res.Summary,
				ApprovalTx:    res.ApprovalTx,
				SwapTx:        res.SwapTx,
				SwapTxLink:    res.SwapTxLink,
				Submitted:     res.Submitted,
				SkippedReason: res.SkippedReason,
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), payload, res.Warnings, cacheMetaBypass(), nil)
		},
	}
	args.register(cmd, false)
	cmd.Flags().StringVar(&rpcURL, "rpc-url", "", "Chain RPC endpoint (defaults per chain)")
	cmd.Flags().BoolVar(&listSources, "list-sources", false, "Also list the chain's liquidity sources")
	return cmd
}

func priceSummary(chain registry.Chain, req zeroex.SwapRequest, price *zeroex.Price) model.SwapSummary {
	summary := model.SwapSummary{
		ChainID:        chain.ChainID,
		SellToken:      req.SellToken,
		BuyToken:       req.BuyToken,
		SellAmount:     price.SellAmount,
		BuyAmount:      price.BuyAmount,
		Fills:          report.Fills(price.Route),
		Taxes:          report.Taxes(price.TokenMetadata, req.BuyToken, req.SellToken),
		TradeSurplus:   price.TradeSurplus,
		ApprovalNeeded: price.Issues != nil && price.Issues.Allowance != nil,
	}
	if price.AffiliateFeeBps != nil {
		summary.AffiliateFeeBps = price.AffiliateFeeBps.Int64()
	}
	if summary.ApprovalNeeded {
		summary.ApprovalSpender = price.Issues.Allowance.Spender
	}
	return summary
}

func quoteSummary(chain registry.Chain, req zeroex.SwapRequest, quote *zeroex.Quote) model.SwapSummary {
	summary := model.SwapSummary{
		ChainID:        chain.ChainID,
		SellToken:      req.SellToken,
		BuyToken:       req.BuyToken,
		SellAmount:     quote.SellAmount,
		BuyAmount:      quote.BuyAmount,
		Fills:          report.Fills(quote.Route),
		Taxes:          report.Taxes(quote.TokenMetadata, req.BuyToken, req.SellToken),
		TradeSurplus:   quote.TradeSurplus,
		PermitRequired: quote.PermitRequired(),
	}
	if quote.AffiliateFeeBps != nil {
		summary.AffiliateFeeBps = quote.AffiliateFeeBps.Int64()
	}
	if quote.Issues != nil && quote.Issues.Allowance != nil {
		summary.ApprovalNeeded = true
		summary.ApprovalSpender = quote.Issues.Allowance.Spender
	}
	return summary
}
