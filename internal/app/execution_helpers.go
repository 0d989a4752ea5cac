package app

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	clierr "github.com/ggonzalez94/swapx/internal/errors"
	"github.com/ggonzalez94/swapx/internal/execution"
	execsigner "github.com/ggonzalez94/swapx/internal/execution/signer"
	"github.com/ggonzalez94/swapx/internal/registry"
)

func (s *runtimeState) loadSigner() (execsigner.Signer, error) {
	return execsigner.NewLocalSignerFromEnv()
}

// dialBackend connects to the chain RPC endpoint, preferring the --rpc-url
// flag, then config/env, then the chain's canonical default.
func (s *runtimeState) dialBackend(chain registry.Chain, override string) (*ethclient.Client, error) {
	if override == "" {
		override = s.settings.RPCURL
	}
	endpoint, err := registry.ResolveRPCURL(override, chain.ChainID)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeConfig, "resolve rpc endpoint", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
	defer cancel()
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "connect to rpc endpoint", err)
	}
	return client, nil
}

func (s *runtimeState) openRunStore() (*execution.Store, error) {
	store, err := execution.OpenStore(s.settings.RunStorePath, s.settings.RunLockPath)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "open run journal", err)
	}
	return store, nil
}
