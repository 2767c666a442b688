package nft

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"
)

const (
	methodMint      = "createDeveloper"
	methodMintCount = "getDeveloperCount"
	methodMaxSupply = "getMaxSupply"

	// EventMinted is emitted by the collection once per minted token.
	EventMinted = "NewDeveloper"
)

var (
	ErrNoWallet     = errors.New("no wallet connected")
	ErrMintReverted = errors.New("mint transaction reverted")
)

// Contract is the part of *bind.BoundContract the gateway and subscriber drive.
type Contract interface {
	Call(opts *bind.CallOpts, results *[]interface{}, method string, params ...interface{}) error
	Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error)
	WatchLogs(opts *bind.WatchOpts, name string, query ...[]interface{}) (chan types.Log, event.Subscription, error)
	UnpackLog(out interface{}, event string, log types.Log) error
}

// ReceiptReader is satisfied by *ethclient.Client.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Bind wraps the collection at address behind a bound contract handle.
func Bind(address common.Address, parsed abi.ABI, backend bind.ContractBackend) *bind.BoundContract {
	return bind.NewBoundContract(address, parsed, backend, backend, backend)
}

// Gateway issues the collection's read calls and the mint write call on behalf of
// the connected signer.
type Gateway struct {
	contract     Contract
	receipts     ReceiptReader
	address      common.Address
	pollInterval time.Duration
	log          *zap.Logger

	mu     sync.RWMutex
	signer *bind.TransactOpts
}

func NewGateway(address common.Address, contract Contract, receipts ReceiptReader, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{
		contract:     contract,
		receipts:     receipts,
		address:      address,
		pollInterval: 2 * time.Second,
		log:          log.With(zap.String("component", "gateway")),
	}
}

// SetPollInterval changes how often WaitMined asks for a receipt.
func (g *Gateway) SetPollInterval(d time.Duration) {
	if d > 0 {
		g.pollInterval = d
	}
}

func (g *Gateway) Address() common.Address {
	return g.address
}

// Attach binds the signer used by every subsequent call.
func (g *Gateway) Attach(signer *bind.TransactOpts) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.signer = signer
}

func (g *Gateway) Detach() {
	g.Attach(nil)
}

func (g *Gateway) currentSigner() (*bind.TransactOpts, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.signer == nil {
		return nil, ErrNoWallet
	}
	return g.signer, nil
}

func (g *Gateway) ReadMintCount(ctx context.Context) (uint64, error) {
	return g.readUint(ctx, methodMintCount)
}

func (g *Gateway) ReadMaxSupply(ctx context.Context) (uint64, error) {
	return g.readUint(ctx, methodMaxSupply)
}

func (g *Gateway) readUint(ctx context.Context, method string) (uint64, error) {
	signer, err := g.currentSigner()
	if err != nil {
		return 0, err
	}

	var out []interface{}
	opts := &bind.CallOpts{Context: ctx, From: signer.From}
	if err := g.contract.Call(opts, &out, method); err != nil {
		return 0, fmt.Errorf("call %s: %w", method, err)
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("call %s: expected 1 result, got %d", method, len(out))
	}
	value, ok := out[0].(*big.Int)
	if !ok || value == nil {
		return 0, fmt.Errorf("call %s: unexpected result type %T", method, out[0])
	}
	if !value.IsUint64() {
		return 0, fmt.Errorf("call %s: result %s overflows uint64", method, value)
	}
	g.log.Debug("read", zap.String("method", method), zap.Uint64("value", value.Uint64()))
	return value.Uint64(), nil
}

// SubmitMint sends the mint transaction and returns as soon as the node accepts it.
func (g *Gateway) SubmitMint(ctx context.Context) (*types.Transaction, error) {
	signer, err := g.currentSigner()
	if err != nil {
		return nil, err
	}

	opts := *signer
	opts.Context = ctx

	tx, err := g.contract.Transact(&opts, methodMint)
	if err != nil {
		return nil, fmt.Errorf("mint tx: %w", err)
	}
	g.log.Info("mint submitted", zap.String("tx", tx.Hash().Hex()), zap.String("from", signer.From.Hex()))
	return tx, nil
}

// WaitMined polls until the transaction is mined or ctx is done. A mined but
// reverted transaction yields ErrMintReverted alongside its receipt.
func (g *Gateway) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := g.receipts.TransactionReceipt(ctx, tx.Hash())
		if receipt != nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, fmt.Errorf("%w: %s", ErrMintReverted, tx.Hash().Hex())
			}
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("receipt %s: %w", tx.Hash().Hex(), err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
