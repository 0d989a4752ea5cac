package execution

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	clierr "github.com/ggonzalez94/swapx/internal/errors"
	"github.com/ggonzalez94/swapx/internal/execution/signer"
	"github.com/ggonzalez94/swapx/internal/registry"
	"github.com/ggonzalez94/swapx/internal/zeroex"
)

// MaxApproval is the unlimited ERC-20 allowance (2^256 - 1).
var MaxApproval = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

var erc20ABI = mustABI(registry.ERC20MinimalABI)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// EnsureAllowance grants the spender named by the price's allowance issue an
// unlimited approval on the sell token. A nil issue means the allowance is
// already in place and nothing is done. The approval is simulated before it
// is broadcast; any failure is returned for the caller to recover from, since
// an approval failure does not stop the swap attempt.
func EnsureAllowance(ctx context.Context, backend Backend, txSigner signer.Signer, sellToken string, issue *zeroex.AllowanceIssue) (string, error) {
	if issue == nil {
		return "", nil
	}
	if !common.IsHexAddress(issue.Spender) {
		return "", clierr.New(clierr.CodeApproval, "allowance issue carries an invalid spender address")
	}
	if !common.IsHexAddress(sellToken) {
		return "", clierr.New(clierr.CodeApproval, "sell token is not a valid ERC-20 address")
	}
	token := common.HexToAddress(sellToken)
	spender := common.HexToAddress(issue.Spender)

	data, err := erc20ABI.Pack("approve", spender, MaxApproval)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "pack approve calldata", err)
	}

	from := txSigner.Address()
	msg := ethereum.CallMsg{From: from, To: &token, Data: data}
	if _, err := backend.CallContract(ctx, msg, nil); err != nil {
		return "", clierr.Wrap(clierr.CodeApproval, "simulate approval (eth_call)", err)
	}

	gasLimit, err := backend.EstimateGas(ctx, msg)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeApproval, "estimate approval gas", err)
	}
	gasPrice, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeApproval, "suggest gas price", err)
	}
	nonce, err := backend.PendingNonceAt(ctx, from)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeApproval, "fetch nonce", err)
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeApproval, "read chain id", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &token,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := txSigner.SignTx(chainID, tx)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeApproval, "sign approval transaction", err)
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		return "", clierr.Wrap(clierr.CodeApproval, "broadcast approval transaction", err)
	}

	// Best effort: give the approval a chance to mine so the firm quote
	// sees the new allowance. Not waiting is not a failure.
	waitMined(ctx, backend, signed.Hash())
	return signed.Hash().Hex(), nil
}

const (
	receiptWaitBudget = 8 * time.Second
	receiptPollEvery  = 500 * time.Millisecond
)

func waitMined(ctx context.Context, backend Backend, txHash common.Hash) {
	waitCtx, cancel := context.WithTimeout(ctx, receiptWaitBudget)
	defer cancel()
	ticker := time.NewTicker(receiptPollEvery)
	defer ticker.Stop()
	for {
		if receipt, err := backend.TransactionReceipt(waitCtx, txHash); err == nil && receipt != nil {
			return
		}
		select {
		case <-waitCtx.Done():
			return
		case <-ticker.C:
		}
	}
}
