package wallet

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Session is an authorized account together with the signer bound to it.
type Session struct {
	Account common.Address
	ChainID *big.Int
	Signer  *bind.TransactOpts
	// Warning is set (wrapping ErrNetworkMismatch) when the provider reports a
	// chain other than the expected one. It never blocks the session.
	Warning error
}

// Connector turns provider accounts into sessions.
type Connector struct {
	provider        Provider
	expectedChainID *big.Int
	log             *zap.Logger
}

// NewConnector accepts a nil provider; every call then fails with ErrProviderAbsent.
func NewConnector(provider Provider, expectedChainID *big.Int, log *zap.Logger) *Connector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Connector{
		provider:        provider,
		expectedChainID: expectedChainID,
		log:             log.With(zap.String("component", "wallet")),
	}
}

// CheckConnection picks up a previously authorized account without prompting.
func (c *Connector) CheckConnection(ctx context.Context) (Session, error) {
	if c.provider == nil {
		return Session{}, ErrProviderAbsent
	}
	accts, err := c.provider.Accounts(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("list accounts: %w", err)
	}
	if len(accts) == 0 {
		return Session{}, ErrNoAuthorizedAccount
	}
	c.log.Info("found an authorized account", zap.String("account", accts[0].Hex()))
	return c.open(ctx, accts[0])
}

// Connect asks the provider for account access and identifies the network.
func (c *Connector) Connect(ctx context.Context, passphrase string) (Session, error) {
	if c.provider == nil {
		return Session{}, ErrProviderAbsent
	}
	accts, err := c.provider.RequestAccounts(ctx, passphrase)
	if err != nil {
		return Session{}, fmt.Errorf("request accounts: %w", err)
	}
	if len(accts) == 0 {
		return Session{}, ErrNoAuthorizedAccount
	}
	c.log.Info("connected", zap.String("account", accts[0].Hex()))
	return c.open(ctx, accts[0])
}

// Disconnect drops the provider's authorizations when it supports revoking them.
func (c *Connector) Disconnect() {
	if r, ok := c.provider.(interface{ Revoke() }); ok {
		r.Revoke()
		c.log.Info("authorizations revoked")
	}
}

func (c *Connector) open(ctx context.Context, account common.Address) (Session, error) {
	chainID, err := c.provider.ChainID(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("fetch chain id: %w", err)
	}
	c.log.Info("connected to chain", zap.String("chain_id", chainID.String()))

	signer, err := c.provider.Transactor(ctx, account, chainID)
	if err != nil {
		return Session{}, err
	}

	s := Session{Account: account, ChainID: chainID, Signer: signer}
	if c.expectedChainID != nil && chainID.Cmp(c.expectedChainID) != 0 {
		s.Warning = fmt.Errorf("%w: chain %s, expected %s", ErrNetworkMismatch, chainID, c.expectedChainID)
		c.log.Warn("unexpected network", zap.String("chain_id", chainID.String()), zap.String("expected", c.expectedChainID.String()))
	}
	return s, nil
}
