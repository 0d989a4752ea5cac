// Package workflow drives a full permit2 swap: indicative price, conditional
// ERC-20 approval, firm quote, quote reporting, permit signing, signature
// assembly and broadcast. Approval and permit-signing failures are recovered
// as warnings; everything the run cannot proceed without is fatal.
package workflow

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/swapx/internal/errors"
	"github.com/ggonzalez94/swapx/internal/execution"
	"github.com/ggonzalez94/swapx/internal/execution/signer"
	"github.com/ggonzalez94/swapx/internal/model"
	"github.com/ggonzalez94/swapx/internal/registry"
	"github.com/ggonzalez94/swapx/internal/report"
	"github.com/ggonzalez94/swapx/internal/zeroex"
)

// SkipReasonNoPermit is reported when the firm quote carries no permit2
// payload. Such quotes are never broadcast.
const SkipReasonNoPermit = "quote carried no permit; nothing to submit"

// API is the slice of the aggregator client the workflow consumes.
type API interface {
	Sources(ctx context.Context, chainID int64) ([]string, error)
	Price(ctx context.Context, req zeroex.SwapRequest) (*zeroex.Price, error)
	Quote(ctx context.Context, req zeroex.SwapRequest) (*zeroex.Quote, error)
}

// Deps carries the collaborators a run needs. Store and Progress are
// optional; a nil store skips journaling and a nil progress writer silences
// the textual report.
type Deps struct {
	API      API
	Backend  execution.Backend
	Signer   signer.Signer
	Store    *execution.Store
	Progress io.Writer
}

// Params are the swap inputs after CLI parsing and validation.
type Params struct {
	Chain             registry.Chain
	SellToken         string
	BuyToken          string
	SellAmount        string
	AffiliateFeeBps   int64
	SurplusCollection bool
	ListSources       bool
}

// Result is the final state of one run, fatal or not.
type Result struct {
	Run           execution.Run
	Summary       model.SwapSummary
	Sources       []string
	ApprovalTx    string
	SwapTx        string
	SwapTxLink    string
	Submitted     bool
	SkippedReason string
	Warnings      []string
}

type sourcesOutcome struct {
	names []string
	err   error
}

// Run executes the whole swap workflow. On a fatal error the returned Result
// still carries the journaled run and any warnings collected before the
// failure.
func Run(ctx context.Context, deps Deps, params Params) (Result, error) {
	taker := deps.Signer.Address().Hex()
	run := execution.NewRun(params.Chain.ChainID, taker, params.SellToken, params.BuyToken, params.SellAmount)
	res := Result{Run: run}
	progress := deps.Progress
	if progress == nil {
		progress = io.Discard
	}

	// The sources listing is informational; fetch it alongside the price
	// and downgrade a failure to a warning.
	var sourcesCh chan sourcesOutcome
	if params.ListSources {
		sourcesCh = make(chan sourcesOutcome, 1)
		go func() {
			names, err := deps.API.Sources(ctx, params.Chain.ChainID)
			sourcesCh <- sourcesOutcome{names: names, err: err}
		}()
	}

	req := zeroex.SwapRequest{
		ChainID:           params.Chain.ChainID,
		SellToken:         params.SellToken,
		BuyToken:          params.BuyToken,
		SellAmount:        params.SellAmount,
		Taker:             taker,
		AffiliateFeeBps:   params.AffiliateFeeBps,
		SurplusCollection: params.SurplusCollection,
	}

	price, err := deps.API.Price(ctx, req)
	if err != nil {
		return fail(deps, &res, execution.StepPrice, err)
	}
	res.Run.AddStep(execution.RunStep{StepID: execution.StepPrice, Status: execution.StepStatusDone,
		Detail: fmt.Sprintf("buy amount %s", price.BuyAmount)})
	save(deps, &res)

	if sourcesCh != nil {
		outcome := <-sourcesCh
		if outcome.err != nil {
			res.Warnings = append(res.Warnings, "sources listing unavailable: "+outcome.err.Error())
		} else {
			res.Sources = outcome.names
			fmt.Fprintf(progress, "%d sources on chain %d\n", len(outcome.names), params.Chain.ChainID)
		}
	}

	res.Run.AddStep(runApproval(ctx, deps, &res, params.SellToken, price.Issues.Allowance))
	save(deps, &res)

	quote, err := deps.API.Quote(ctx, req)
	if err != nil {
		return fail(deps, &res, execution.StepQuote, err)
	}
	res.Run.AddStep(execution.RunStep{StepID: execution.StepQuote, Status: execution.StepStatusDone})
	save(deps, &res)

	res.Summary = buildSummary(params, price, quote)
	writeReport(progress, res.Summary)

	if !quote.PermitRequired() {
		res.SkippedReason = SkipReasonNoPermit
		res.Warnings = append(res.Warnings, SkipReasonNoPermit)
		res.Run.AddStep(execution.RunStep{StepID: execution.StepSubmit, Status: execution.StepStatusSkipped, Detail: SkipReasonNoPermit})
		res.Run.Status = execution.RunStatusSkipped
		save(deps, &res)
		return res, nil
	}

	var permitSig []byte
	permitSig, err = deps.Signer.SignTypedData(*quote.Permit2.EIP712)
	if err != nil {
		signErr := clierr.Wrap(clierr.CodeSigning, "permit signing failed", err)
		res.Warnings = append(res.Warnings, signErr.Error()+"; continuing without a signature")
		res.Run.AddStep(execution.RunStep{StepID: execution.StepPermit, Status: execution.StepStatusFailed, Error: signErr.Error()})
		permitSig = nil
	} else {
		res.Run.AddStep(execution.RunStep{StepID: execution.StepPermit, Status: execution.StepStatusDone})
	}
	save(deps, &res)

	callData, err := execution.DecodeHex(quote.Transaction.Data)
	if err != nil {
		return fail(deps, &res, execution.StepAssemble, err)
	}
	assembled, err := execution.AppendSignature(callData, permitSig)
	if err != nil {
		return fail(deps, &res, execution.StepAssemble, err)
	}
	res.Run.AddStep(execution.RunStep{StepID: execution.StepAssemble, Status: execution.StepStatusDone})
	save(deps, &res)

	submitReq, err := buildSubmitRequest(quote.Transaction, assembled)
	if err != nil {
		return fail(deps, &res, execution.StepSubmit, err)
	}
	txHash, err := execution.Submit(ctx, deps.Backend, deps.Signer, submitReq)
	if err != nil {
		return fail(deps, &res, execution.StepSubmit, err)
	}

	res.SwapTx = txHash
	res.SwapTxLink = registry.ExplorerTxURL(params.Chain.ChainID, txHash)
	res.Submitted = true
	res.Run.SwapTxHash = txHash
	res.Run.AddStep(execution.RunStep{StepID: execution.StepSubmit, Status: execution.StepStatusDone, TxHash: txHash})
	res.Run.Status = execution.RunStatusCompleted
	save(deps, &res)

	fmt.Fprintf(progress, "swap submitted: %s\n", res.SwapTxLink)
	return res, nil
}

// runApproval grants the allowance the price's issues object demands. Any
// failure is demoted to a warning; the swap attempt continues either way.
func runApproval(ctx context.Context, deps Deps, res *Result, sellToken string, issue *zeroex.AllowanceIssue) execution.RunStep {
	if issue == nil {
		return execution.RunStep{StepID: execution.StepApproval, Status: execution.StepStatusSkipped, Detail: "allowance already in place"}
	}
	hash, err := execution.EnsureAllowance(ctx, deps.Backend, deps.Signer, sellToken, issue)
	if err != nil {
		res.Warnings = append(res.Warnings, "approval failed, continuing: "+err.Error())
		return execution.RunStep{StepID: execution.StepApproval, Status: execution.StepStatusFailed, Error: err.Error()}
	}
	res.ApprovalTx = hash
	res.Run.ApproveHash = hash
	return execution.RunStep{StepID: execution.StepApproval, Status: execution.StepStatusDone, TxHash: hash}
}

func buildSummary(params Params, price *zeroex.Price, quote *zeroex.Quote) model.SwapSummary {
	summary := model.SwapSummary{
		ChainID:        params.Chain.ChainID,
		SellToken:      params.SellToken,
		BuyToken:       params.BuyToken,
		SellAmount:     quote.SellAmount,
		BuyAmount:      quote.BuyAmount,
		Fills:          report.Fills(quote.Route),
		Taxes:          report.Taxes(quote.TokenMetadata, params.BuyToken, params.SellToken),
		TradeSurplus:   quote.TradeSurplus,
		PermitRequired: quote.PermitRequired(),
	}
	if quote.AffiliateFeeBps != nil {
		summary.AffiliateFeeBps = quote.AffiliateFeeBps.Int64()
	}
	if price.Issues != nil && price.Issues.Allowance != nil {
		summary.ApprovalNeeded = true
		summary.ApprovalSpender = price.Issues.Allowance.Spender
	}
	return summary
}

func writeReport(w io.Writer, summary model.SwapSummary) {
	fmt.Fprintf(w, "quote: sell %s for %s\n", summary.SellAmount, summary.BuyAmount)
	report.WriteLiquidity(w, summary.Fills)
	report.WriteTaxes(w, summary.Taxes)
	var feeBps *int64
	if summary.AffiliateFeeBps > 0 {
		feeBps = &summary.AffiliateFeeBps
	}
	report.WriteMonetization(w, feeBps, summary.TradeSurplus)
}

func buildSubmitRequest(tx *zeroex.Transaction, data []byte) (execution.SubmitRequest, error) {
	value, err := execution.ParseOptionalBig(tx.Value)
	if err != nil {
		return execution.SubmitRequest{}, err
	}
	gasPrice, err := execution.ParseOptionalBig(tx.GasPrice)
	if err != nil {
		return execution.SubmitRequest{}, err
	}
	gas, err := execution.ParseOptionalGas(tx.Gas)
	if err != nil {
		return execution.SubmitRequest{}, err
	}
	if !common.IsHexAddress(tx.To) {
		return execution.SubmitRequest{}, clierr.New(clierr.CodeUpstream, "quote transaction carries an invalid target address")
	}
	return execution.SubmitRequest{
		To:       common.HexToAddress(tx.To),
		Data:     data,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
	}, nil
}

// fail journals the failed step, marks the run failed and returns the error.
func fail(deps Deps, res *Result, stepID string, err error) (Result, error) {
	res.Run.AddStep(execution.RunStep{StepID: stepID, Status: execution.StepStatusFailed, Error: err.Error()})
	res.Run.Status = execution.RunStatusFailed
	save(deps, res)
	return *res, err
}

func save(deps Deps, res *Result) {
	if deps.Store == nil {
		return
	}
	if err := deps.Store.Save(res.Run); err != nil {
		res.Warnings = append(res.Warnings, "run journal write failed: "+err.Error())
	}
}
