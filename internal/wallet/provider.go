package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrProviderAbsent      = errors.New("wallet provider not available")
	ErrAuthorizationDenied = errors.New("account access denied")
	ErrNoAuthorizedAccount = errors.New("no authorized account found")
	ErrNetworkMismatch     = errors.New("connected to an unexpected network")
)

// Provider brokers key custody for the site the way an injected browser wallet
// does: it lists already authorized accounts, asks for access, reports the chain
// and hands out signers.
type Provider interface {
	// Accounts returns the authorized accounts without prompting.
	Accounts(ctx context.Context) ([]common.Address, error)
	// RequestAccounts asks for access using the supplied credential.
	RequestAccounts(ctx context.Context, passphrase string) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Transactor(ctx context.Context, account common.Address, chainID *big.Int) (*bind.TransactOpts, error)
}

// ChainIDReader is satisfied by *ethclient.Client.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// KeystoreProvider serves accounts from an encrypted go-ethereum keystore. An
// account becomes authorized once it has been unlocked with its passphrase.
type KeystoreProvider struct {
	ks    *keystore.KeyStore
	chain ChainIDReader

	mu         sync.Mutex
	authorized map[common.Address]bool
}

func NewKeystoreProvider(ks *keystore.KeyStore, chain ChainIDReader) *KeystoreProvider {
	return &KeystoreProvider{
		ks:         ks,
		chain:      chain,
		authorized: make(map[common.Address]bool),
	}
}

func (p *KeystoreProvider) Accounts(_ context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []common.Address
	for _, acct := range p.ks.Accounts() {
		if p.authorized[acct.Address] {
			out = append(out, acct.Address)
		}
	}
	return out, nil
}

func (p *KeystoreProvider) RequestAccounts(_ context.Context, passphrase string) ([]common.Address, error) {
	accts := p.ks.Accounts()
	if len(accts) == 0 {
		return nil, fmt.Errorf("%w: keystore holds no accounts", ErrProviderAbsent)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var (
		out     []common.Address
		lastErr error
	)
	for _, acct := range accts {
		if err := p.ks.Unlock(acct, passphrase); err != nil {
			lastErr = err
			continue
		}
		p.authorized[acct.Address] = true
		out = append(out, acct.Address)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrAuthorizationDenied, lastErr)
	}
	return out, nil
}

func (p *KeystoreProvider) ChainID(ctx context.Context) (*big.Int, error) {
	return p.chain.ChainID(ctx)
}

func (p *KeystoreProvider) Transactor(_ context.Context, account common.Address, chainID *big.Int) (*bind.TransactOpts, error) {
	p.mu.Lock()
	ok := p.authorized[account]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAuthorizationDenied, account.Hex())
	}
	opts, err := bind.NewKeyStoreTransactorWithChainID(p.ks, accounts.Account{Address: account}, chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	return opts, nil
}

// Revoke forgets every authorization and locks the keys again.
func (p *KeystoreProvider) Revoke() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for addr := range p.authorized {
		_ = p.ks.Lock(addr)
	}
	p.authorized = make(map[common.Address]bool)
}

// KeyProvider serves a single operator supplied private key. The key counts as
// authorized from the start.
type KeyProvider struct {
	key   *ecdsa.PrivateKey
	addr  common.Address
	chain ChainIDReader
}

func NewKeyProvider(hexKey string, chain ChainIDReader) (*KeyProvider, error) {
	key, err := parsePrivateKey(hexKey)
	if err != nil {
		return nil, err
	}
	return &KeyProvider{
		key:   key,
		addr:  crypto.PubkeyToAddress(key.PublicKey),
		chain: chain,
	}, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

func (p *KeyProvider) Accounts(_ context.Context) ([]common.Address, error) {
	return []common.Address{p.addr}, nil
}

func (p *KeyProvider) RequestAccounts(_ context.Context, _ string) ([]common.Address, error) {
	return []common.Address{p.addr}, nil
}

func (p *KeyProvider) ChainID(ctx context.Context) (*big.Int, error) {
	return p.chain.ChainID(ctx)
}

func (p *KeyProvider) Transactor(_ context.Context, account common.Address, chainID *big.Int) (*bind.TransactOpts, error) {
	if account != p.addr {
		return nil, fmt.Errorf("%w: %s", ErrAuthorizationDenied, account.Hex())
	}
	opts, err := bind.NewKeyedTransactorWithChainID(p.key, chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	opts.GasLimit = 0 // let node estimate
	return opts, nil
}
