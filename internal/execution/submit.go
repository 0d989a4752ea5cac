package execution

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	clierr "github.com/ggonzalez94/swapx/internal/errors"
	"github.com/ggonzalez94/swapx/internal/execution/signer"
)

// SubmitRequest is the assembled swap transaction ready for signing. Gas,
// GasPrice and Value are optional; missing values are resolved from the
// chain before signing.
type SubmitRequest struct {
	To       common.Address
	Data     []byte
	Value    *big.Int
	Gas      uint64
	GasPrice *big.Int
}

// ParseOptionalBig converts an optional decimal string from the quote into
// a big integer. Empty and "0"-equivalent inputs return nil so the chain
// default applies.
func ParseOptionalBig(v string) (*big.Int, error) {
	clean := strings.TrimSpace(v)
	if clean == "" {
		return nil, nil
	}
	out, ok := new(big.Int).SetString(clean, 10)
	if !ok {
		return nil, clierr.New(clierr.CodeUpstream, "quote carries a non-decimal numeric field: "+clean)
	}
	return out, nil
}

// ParseOptionalGas converts an optional decimal gas-limit string.
func ParseOptionalGas(v string) (uint64, error) {
	out, err := ParseOptionalBig(v)
	if err != nil {
		return 0, err
	}
	if out == nil {
		return 0, nil
	}
	if !out.IsUint64() {
		return 0, clierr.New(clierr.CodeUpstream, "quote gas limit out of range")
	}
	return out.Uint64(), nil
}

// Submit signs and broadcasts the assembled swap transaction, returning the
// transaction hash. There is no receipt wait and no retry; a broadcast
// failure is terminal for the run.
func Submit(ctx context.Context, backend Backend, txSigner signer.Signer, req SubmitRequest) (string, error) {
	if len(req.Data) == 0 {
		return "", clierr.New(clierr.CodeSubmission, "refusing to submit a transaction without call data")
	}
	from := txSigner.Address()
	nonce, err := backend.PendingNonceAt(ctx, from)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeSubmission, "fetch nonce", err)
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeSubmission, "read chain id", err)
	}

	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}
	gasLimit := req.Gas
	if gasLimit == 0 {
		gasLimit, err = backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &req.To, Value: value, Data: req.Data})
		if err != nil {
			return "", clierr.Wrap(clierr.CodeSubmission, "estimate swap gas", err)
		}
	}
	gasPrice := req.GasPrice
	if gasPrice == nil {
		gasPrice, err = backend.SuggestGasPrice(ctx)
		if err != nil {
			return "", clierr.Wrap(clierr.CodeSubmission, "suggest gas price", err)
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &req.To,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     req.Data,
	})
	signed, err := txSigner.SignTx(chainID, tx)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeSubmission, "sign swap transaction", err)
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		return "", clierr.Wrap(clierr.CodeSubmission, "broadcast swap transaction", err)
	}
	return signed.Hash().Hex(), nil
}
