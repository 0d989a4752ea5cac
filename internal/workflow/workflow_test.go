package workflow

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	clierr "github.com/ggonzalez94/swapx/internal/errors"
	"github.com/ggonzalez94/swapx/internal/execution"
	"github.com/ggonzalez94/swapx/internal/execution/signer"
	"github.com/ggonzalez94/swapx/internal/registry"
	"github.com/ggonzalez94/swapx/internal/zeroex"
)

const (
	testPrivateKey = "59c6995e998f97a5a0044976f0945388cf9b7e5e5f4f9d2d9d8f1f5b7f6d11d1"
	sellToken      = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	buyToken       = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"
	permit2Spender = "0x000000000022D473030F116dDEE9F6B43aC78BA3"
	settlerTarget  = "0x0000000000001fF3684f28c67538d4D072C22734"
)

type fakeAPI struct {
	price      *zeroex.Price
	quote      *zeroex.Quote
	sources    []string
	priceErr   error
	quoteErr   error
	sourcesErr error

	quoteCalls int
}

func (f *fakeAPI) Sources(context.Context, int64) ([]string, error) {
	return f.sources, f.sourcesErr
}

func (f *fakeAPI) Price(context.Context, zeroex.SwapRequest) (*zeroex.Price, error) {
	return f.price, f.priceErr
}

func (f *fakeAPI) Quote(context.Context, zeroex.SwapRequest) (*zeroex.Quote, error) {
	f.quoteCalls++
	return f.quote, f.quoteErr
}

type fakeBackend struct {
	callErr error
	sendErr error
	sent    []*types.Transaction
}

func (b *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(8453), nil }

func (b *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	if b.callErr != nil {
		return nil, b.callErr
	}
	return []byte{0x01}, nil
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 90_000, nil
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(12_000_000_000), nil
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 3, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	return &types.Receipt{TxHash: txHash, Status: types.ReceiptStatusSuccessful}, nil
}

// failingSigner delegates everything to a real key but refuses typed data.
type failingSigner struct {
	*signer.LocalSigner
}

func (s failingSigner) SignTypedData(apitypes.TypedData) ([]byte, error) {
	return nil, errors.New("hardware wallet unavailable")
}

func newSigner(t *testing.T) *signer.LocalSigner {
	t.Helper()
	s, err := signer.NewLocalSigner(signer.LocalSignerConfig{PrivateKeyHex: testPrivateKey})
	if err != nil {
		t.Fatalf("build signer: %v", err)
	}
	return s
}

func permitTypedData() *apitypes.TypedData {
	return &apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"PermitTransferFrom": []apitypes.Type{
				{Name: "spender", Type: "address"},
				{Name: "nonce", Type: "uint256"},
				{Name: "deadline", Type: "uint256"},
			},
		},
		PrimaryType: "PermitTransferFrom",
		Domain: apitypes.TypedDataDomain{
			Name:              "Permit2",
			ChainId:           math.NewHexOrDecimal256(8453),
			VerifyingContract: permit2Spender,
		},
		Message: apitypes.TypedDataMessage{
			"spender":  settlerTarget,
			"nonce":    "2241959297937691820908574931991577",
			"deadline": "1718669696",
		},
	}
}

func basePrice(allowance *zeroex.AllowanceIssue) *zeroex.Price {
	return &zeroex.Price{
		SellToken:  sellToken,
		BuyToken:   buyToken,
		SellAmount: "1000000000000000000",
		BuyAmount:  "3100000000",
		Issues:     &zeroex.Issues{Allowance: allowance},
	}
}

func baseQuote(withPermit bool) *zeroex.Quote {
	fee := zeroex.FlexInt64(100)
	q := &zeroex.Quote{
		SellToken:  sellToken,
		BuyToken:   buyToken,
		SellAmount: "1000000000000000000",
		BuyAmount:  "3100000000",
		Route: &zeroex.Route{Fills: []zeroex.Fill{
			{Source: "Uniswap_V3", ProportionBps: 7000},
			{Source: "SolidlyV3", ProportionBps: 3000},
		}},
		TokenMetadata: &zeroex.TokenMetadata{
			BuyToken:  zeroex.TokenTaxes{BuyTaxBps: 0, SellTaxBps: 150},
			SellToken: zeroex.TokenTaxes{},
		},
		Issues:          &zeroex.Issues{},
		Transaction:     &zeroex.Transaction{To: settlerTarget, Data: "0x1fff991f0a0b", Gas: "250000", GasPrice: "12000000000", Value: "0"},
		AffiliateFeeBps: &fee,
		TradeSurplus:    "1250",
	}
	if withPermit {
		q.Permit2 = &zeroex.Permit2{Type: "Permit2", EIP712: permitTypedData()}
	}
	return q
}

func baseParams() Params {
	chain, _ := registry.ParseChain("base")
	return Params{
		Chain:      chain,
		SellToken:  sellToken,
		BuyToken:   buyToken,
		SellAmount: "1000000000000000000",
	}
}

func TestRunSubmitsSignedSwap(t *testing.T) {
	api := &fakeAPI{
		price: basePrice(&zeroex.AllowanceIssue{Actual: "0", Spender: permit2Spender}),
		quote: baseQuote(true),
	}
	backend := &fakeBackend{}
	var progress bytes.Buffer
	deps := Deps{API: api, Backend: backend, Signer: newSigner(t), Progress: &progress}

	res, err := Run(context.Background(), deps, baseParams())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Submitted {
		t.Fatal("expected the swap to be submitted")
	}
	if len(backend.sent) != 2 {
		t.Fatalf("expected approval and swap broadcasts, got %d", len(backend.sent))
	}
	if res.ApprovalTx == "" || res.SwapTx == "" {
		t.Fatalf("missing tx hashes: %+v", res)
	}
	if !strings.HasPrefix(res.SwapTxLink, "https://basescan.org/tx/") {
		t.Fatalf("unexpected explorer link %q", res.SwapTxLink)
	}

	// Assembled calldata is the quote's data plus a 32-byte big-endian
	// length prefix plus the 65-byte permit signature.
	swapTx := backend.sent[1]
	wantLen := len("1fff991f0a0b")/2 + 32 + 65
	if len(swapTx.Data()) != wantLen {
		t.Fatalf("assembled calldata length = %d, want %d", len(swapTx.Data()), wantLen)
	}
	prefix := new(big.Int).SetBytes(swapTx.Data()[6:38])
	if prefix.Int64() != 65 {
		t.Fatalf("signature length prefix = %d, want 65", prefix.Int64())
	}

	out := progress.String()
	if !strings.Contains(out, "2 liquidity source(s)") || !strings.Contains(out, "Uniswap_V3: 70.00%") {
		t.Fatalf("liquidity breakdown missing from report:\n%s", out)
	}
	if !strings.Contains(out, "taxes: buy 0.00%, sell 1.50%") {
		t.Fatalf("tax report missing:\n%s", out)
	}
	if !strings.Contains(out, "affiliate fee: 1.00%") || !strings.Contains(out, "trade surplus: 1250") {
		t.Fatalf("monetization report missing:\n%s", out)
	}
	if res.Run.Status != execution.RunStatusCompleted {
		t.Fatalf("run status = %s, want completed", res.Run.Status)
	}
}

func TestRunSkipsApprovalWithoutAllowanceIssue(t *testing.T) {
	api := &fakeAPI{price: basePrice(nil), quote: baseQuote(true)}
	backend := &fakeBackend{}
	deps := Deps{API: api, Backend: backend, Signer: newSigner(t)}

	res, err := Run(context.Background(), deps, baseParams())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected only the swap broadcast, got %d", len(backend.sent))
	}
	if res.ApprovalTx != "" {
		t.Fatalf("unexpected approval tx %q", res.ApprovalTx)
	}
	if res.Summary.ApprovalNeeded {
		t.Fatal("summary must not report an approval")
	}
	for _, step := range res.Run.Steps {
		if step.StepID == execution.StepApproval && step.Status != execution.StepStatusSkipped {
			t.Fatalf("approval step status = %s, want skipped", step.Status)
		}
	}
}

func TestRunContinuesPastApprovalFailure(t *testing.T) {
	api := &fakeAPI{
		price: basePrice(&zeroex.AllowanceIssue{Actual: "0", Spender: permit2Spender}),
		quote: baseQuote(true),
	}
	backend := &fakeBackend{callErr: errors.New("execution reverted")}
	deps := Deps{API: api, Backend: backend, Signer: newSigner(t)}

	res, err := Run(context.Background(), deps, baseParams())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if api.quoteCalls != 1 {
		t.Fatal("quote must still be fetched after a failed approval")
	}
	if len(res.Warnings) == 0 || !strings.Contains(res.Warnings[0], "approval failed") {
		t.Fatalf("expected an approval warning, got %v", res.Warnings)
	}
	if !res.Submitted {
		t.Fatal("swap should still be submitted")
	}
}

func TestRunPermitSigningFailureNeverBroadcasts(t *testing.T) {
	api := &fakeAPI{price: basePrice(nil), quote: baseQuote(true)}
	backend := &fakeBackend{}
	deps := Deps{API: api, Backend: backend, Signer: failingSigner{newSigner(t)}}

	res, err := Run(context.Background(), deps, baseParams())
	typed, ok := clierr.As(err)
	if !ok || typed.Code != clierr.CodeAssembly {
		t.Fatalf("expected assembly error after signing failure, got %v", err)
	}
	if len(backend.sent) != 0 {
		t.Fatalf("expected zero broadcasts, got %d", len(backend.sent))
	}
	found := false
	for _, warning := range res.Warnings {
		if strings.Contains(warning, "permit signing failed") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a permit-signing warning, got %v", res.Warnings)
	}
	if res.Run.Status != execution.RunStatusFailed {
		t.Fatalf("run status = %s, want failed", res.Run.Status)
	}
}

func TestRunPermitlessQuoteIsNotSubmitted(t *testing.T) {
	api := &fakeAPI{price: basePrice(nil), quote: baseQuote(false)}
	backend := &fakeBackend{}
	deps := Deps{API: api, Backend: backend, Signer: newSigner(t)}

	res, err := Run(context.Background(), deps, baseParams())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(backend.sent) != 0 {
		t.Fatalf("expected zero broadcasts, got %d", len(backend.sent))
	}
	if res.Submitted {
		t.Fatal("permit-less quote must not be submitted")
	}
	if res.SkippedReason != SkipReasonNoPermit {
		t.Fatalf("skip reason = %q", res.SkippedReason)
	}
	if res.Run.Status != execution.RunStatusSkipped {
		t.Fatalf("run status = %s, want skipped", res.Run.Status)
	}
}

func TestRunSourcesFailureIsAWarning(t *testing.T) {
	api := &fakeAPI{
		price:      basePrice(nil),
		quote:      baseQuote(true),
		sourcesErr: errors.New("upstream down"),
	}
	backend := &fakeBackend{}
	deps := Deps{API: api, Backend: backend, Signer: newSigner(t)}

	params := baseParams()
	params.ListSources = true
	res, err := Run(context.Background(), deps, params)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Warnings) == 0 || !strings.Contains(res.Warnings[0], "sources listing unavailable") {
		t.Fatalf("expected a sources warning, got %v", res.Warnings)
	}
	if !res.Submitted {
		t.Fatal("swap should still be submitted")
	}
}

func TestRunPriceFailureIsFatal(t *testing.T) {
	api := &fakeAPI{priceErr: clierr.New(clierr.CodeUpstream, "price response missing issues object")}
	deps := Deps{API: api, Backend: &fakeBackend{}, Signer: newSigner(t)}

	res, err := Run(context.Background(), deps, baseParams())
	typed, ok := clierr.As(err)
	if !ok || typed.Code != clierr.CodeUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if res.Run.Status != execution.RunStatusFailed {
		t.Fatalf("run status = %s, want failed", res.Run.Status)
	}
	if api.quoteCalls != 0 {
		t.Fatal("quote must not be fetched after a fatal price error")
	}
}
