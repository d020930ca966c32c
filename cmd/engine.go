package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ethereum/go-ethereum/ethclient"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"

	"swap-engine/config"
	"swap-engine/pkg/aggregator"
	"swap-engine/pkg/assets"
	"swap-engine/pkg/metrics"
	"swap-engine/pkg/provider"
	"swap-engine/pkg/router"
	"swap-engine/pkg/rpc"
	"swap-engine/pkg/simulation"
	"swap-engine/pkg/storage"
	"swap-engine/pkg/types"
	"swap-engine/pkg/wallet"
)

// engine bundles the components a command needs, built once from the configuration
type engine struct {
	registry   *assets.Registry
	aggregator *aggregator.Aggregator
	oneClick   *provider.OneClick
	rpc        *rpc.Client
	simulator  *simulation.Service
	preparer   *router.Preparer
	wallet     *wallet.Wallet
}

func newEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	log := logrus.WithField("component", "engine")

	if cfg.MetricsAddr != "" {
		metrics.Serve(cfg.MetricsAddr)
	}

	callers := make(map[types.Chain]provider.ContractCaller)
	simBackends := make(map[types.Chain]simulation.EVMBackend)
	signBackends := make(map[types.Chain]wallet.EVMBackend)
	for chain, url := range cfg.RPC {
		if !chain.IsEVM() {
			continue
		}
		client, err := ethclient.DialContext(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s rpc: %w", chain, err)
		}
		callers[chain] = client
		simBackends[chain] = client
		signBackends[chain] = client
	}

	providers := []provider.Provider{
		provider.NewThorchain(cfg.Thorchain.BaseURL),
	}
	e := &engine{registry: assets.NewRegistry()}
	if cfg.OneClick.JWTToken != "" {
		e.oneClick = provider.NewOneClick(cfg.OneClick.JWTToken, cfg.OneClick.BaseURL)
		providers = append(providers, e.oneClick)
	} else {
		log.Debug("No 1Click JWT token configured, skipping 1Click bridge")
	}
	providers = append(providers, provider.NewUniswapV2(callers, cfg.Uniswap.Routers))
	if cfg.OneInch.APIKey != "" {
		providers = append(providers, provider.NewOneInch(cfg.OneInch.APIKey, cfg.OneInch.BaseURL,
			provider.WithRateLimit(cfg.OneInch.RPS, 1)))
	}
	providers = append(providers, provider.NewJupiter(cfg.Jupiter.BaseURL))

	storagePath := ""
	if cfg.CacheDir != "" {
		storagePath = filepath.Join(cfg.CacheDir, storage.DefaultStorageFileName)
	}
	store, err := storage.NewQuoteStorage(storagePath)
	if err != nil {
		return nil, err
	}
	e.aggregator = aggregator.New(providers,
		aggregator.WithProviderTimeout(cfg.ProviderTimeout),
		aggregator.WithCacheStore(store),
	)

	e.simulator, err = simulation.NewService(simBackends, simulation.WithReceiptTTL(cfg.Simulation.ReceiptTTL))
	if err != nil {
		return nil, err
	}
	e.rpc = rpc.NewClient(cfg.RPC)
	e.preparer = router.NewPreparer(e.rpc, e.simulator)

	var evmSigner *wallet.EVMSigner
	if cfg.Signer.EVMPrivateKey != "" {
		evmSigner, err = wallet.NewEVMSigner(cfg.Signer.EVMPrivateKey, signBackends)
		if err != nil {
			return nil, err
		}
	}
	var solSigner *wallet.SolanaSigner
	if cfg.Signer.SolanaPrivateKey != "" {
		url, ok := cfg.RPC[types.Solana]
		if !ok {
			return nil, fmt.Errorf("rpc.solana is required when a Solana key is configured")
		}
		solSigner, err = wallet.NewSolanaSigner(cfg.Signer.SolanaPrivateKey, solanarpc.New(url))
		if err != nil {
			return nil, err
		}
	}
	e.wallet = wallet.New(evmSigner, solSigner)

	log.WithFields(logrus.Fields{
		"providers": len(providers),
		"evm_rpcs":  len(callers),
		"cache":     store.FilePath(),
	}).Debug("Engine ready")
	return e, nil
}

// newOneClick builds the 1Click client used by the status and list-tokens commands
func newOneClick(cfg *config.Config) (*provider.OneClick, error) {
	if cfg.OneClick.JWTToken == "" {
		return nil, fmt.Errorf("JWT token not found. Please set SWAP_ENGINE_ONECLICK_JWT_TOKEN environment variable or add oneclick.jwt_token to .swap-engine.yaml")
	}
	return provider.NewOneClick(cfg.OneClick.JWTToken, cfg.OneClick.BaseURL), nil
}
