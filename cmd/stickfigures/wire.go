package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"stickfigures/internal/config"
	"stickfigures/internal/contracts"
	"stickfigures/internal/ledger"
	"stickfigures/internal/logging"
	"stickfigures/internal/nft"
	"stickfigures/internal/wallet"
)

// chain bundles the RPC connection with everything bound to the collection.
type chain struct {
	client     *ethclient.Client
	gateway    *nft.Gateway
	subscriber *nft.Subscriber
	connector  *wallet.Connector
}

func (c *chain) Close() {
	c.subscriber.Close()
	c.client.Close()
}

func newLogger(cfg *config.AppConfig) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
}

func dialChain(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*chain, error) {
	parsed, err := contracts.LoadABI(cfg.Chain.ABIPath)
	if err != nil {
		return nil, fmt.Errorf("load abi: %w", err)
	}

	client, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	provider, err := newProvider(cfg, client)
	if err != nil {
		client.Close()
		return nil, err
	}

	address := cfg.Contract()
	bound := nft.Bind(address, parsed, client)

	gateway := nft.NewGateway(address, bound, client, log)
	gateway.SetPollInterval(cfg.Mint.PollInterval)

	return &chain{
		client:     client,
		gateway:    gateway,
		subscriber: nft.NewSubscriber(address, bound, log),
		connector:  wallet.NewConnector(provider, big.NewInt(cfg.Chain.ExpectedChainID), log),
	}, nil
}

// newProvider returns nil when no key material is configured, which the
// connector reports as an absent wallet.
func newProvider(cfg *config.AppConfig, client *ethclient.Client) (wallet.Provider, error) {
	switch {
	case cfg.Wallet.PrivateKey != "":
		p, err := wallet.NewKeyProvider(cfg.Wallet.PrivateKey, client)
		if err != nil {
			return nil, fmt.Errorf("wallet key: %w", err)
		}
		return p, nil
	case cfg.Wallet.KeystoreDir != "":
		ks := keystore.NewKeyStore(cfg.Wallet.KeystoreDir, keystore.StandardScryptN, keystore.StandardScryptP)
		return wallet.NewKeystoreProvider(ks, client), nil
	default:
		return nil, nil
	}
}

func openLedger(ctx context.Context, cfg *config.AppConfig) (ledger.Store, func(), error) {
	switch cfg.Ledger.Driver {
	case config.LedgerFile:
		store, err := ledger.NewFileStore(cfg.Ledger.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("file ledger: %w", err)
		}
		return store, func() {}, nil
	case config.LedgerPostgres:
		store, err := ledger.NewPostgresStore(ctx, cfg.Ledger.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres ledger: %w", err)
		}
		return store, store.Close, nil
	default:
		return ledger.NewMemoryStore(), func() {}, nil
	}
}
