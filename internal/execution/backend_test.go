package execution

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ggonzalez94/swapx/internal/execution/signer"
)

const testPrivateKeyHex = "59c6995e998f97a5a0044976f0945388cf9b7e5e5f4f9d2d9d8f1f5b7f6d11d1"

func newTestSigner(t *testing.T) *signer.LocalSigner {
	t.Helper()
	s, err := signer.NewLocalSigner(signer.LocalSignerConfig{PrivateKeyHex: testPrivateKeyHex})
	if err != nil {
		t.Fatalf("build test signer: %v", err)
	}
	return s
}

type stubBackend struct {
	chainID  *big.Int
	nonce    uint64
	gasLimit uint64
	gasPrice *big.Int

	callErr     error
	estimateErr error
	sendErr     error

	calls     []ethereum.CallMsg
	estimates []ethereum.CallMsg
	sent      []*types.Transaction
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		chainID:  big.NewInt(1),
		nonce:    7,
		gasLimit: 90_000,
		gasPrice: big.NewInt(12_000_000_000),
	}
}

func (b *stubBackend) ChainID(context.Context) (*big.Int, error) {
	return b.chainID, nil
}

func (b *stubBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.calls = append(b.calls, msg)
	if b.callErr != nil {
		return nil, b.callErr
	}
	return []byte{0x01}, nil
}

func (b *stubBackend) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	b.estimates = append(b.estimates, msg)
	if b.estimateErr != nil {
		return 0, b.estimateErr
	}
	return b.gasLimit, nil
}

func (b *stubBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return b.gasPrice, nil
}

func (b *stubBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return b.nonce, nil
}

func (b *stubBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	return nil
}

func (b *stubBackend) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	return &types.Receipt{TxHash: txHash, Status: types.ReceiptStatusSuccessful}, nil
}
