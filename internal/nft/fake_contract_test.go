package nft

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/require"

	"stickfigures/internal/contracts"
)

var (
	testContract = common.HexToAddress("0xCB0Cae20BB14412dB346Dd96Ce75592a2911c5D5")
	testSender   = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

// fakeContract answers calls from canned values and decodes logs with the real ABI.
type fakeContract struct {
	mu        sync.Mutex
	parsed    abi.ABI
	unpacker  *bind.BoundContract
	reads     map[string]*big.Int
	readErr   error
	calls     []string
	callFrom  []common.Address
	txErr     error
	sent      []*types.Transaction
	watchErr  error
	watchers  int
	logs      chan types.Log
	watchSubs []event.Subscription
	fail      chan error
}

func newFakeContract(t *testing.T) *fakeContract {
	t.Helper()
	parsed, err := contracts.LoadABI("")
	require.NoError(t, err)
	return newFakeContractFor(parsed)
}

func newFakeContractFor(parsed abi.ABI) *fakeContract {
	return &fakeContract{
		parsed:   parsed,
		unpacker: bind.NewBoundContract(testContract, parsed, nil, nil, nil),
		reads:    map[string]*big.Int{},
		logs:     make(chan types.Log, 8),
		fail:     make(chan error, 1),
	}
}

func (f *fakeContract) Call(opts *bind.CallOpts, results *[]interface{}, method string, _ ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)
	f.callFrom = append(f.callFrom, opts.From)
	if f.readErr != nil {
		return f.readErr
	}
	value, ok := f.reads[method]
	if !ok {
		return errors.New("execution reverted")
	}
	*results = append(*results, new(big.Int).Set(value))
	return nil
}

func (f *fakeContract) Transact(opts *bind.TransactOpts, method string, _ ...interface{}) (*types.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)
	if f.txErr != nil {
		return nil, f.txErr
	}
	tx := types.NewTx(&types.LegacyTx{Nonce: uint64(len(f.sent)), To: &testContract, Gas: 100_000, GasPrice: big.NewInt(1)})
	f.sent = append(f.sent, tx)
	return tx, nil
}

func (f *fakeContract) WatchLogs(opts *bind.WatchOpts, name string, _ ...[]interface{}) (chan types.Log, event.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watchErr != nil {
		return nil, nil, f.watchErr
	}
	f.watchers++
	sub := event.NewSubscription(func(quit <-chan struct{}) error {
		select {
		case <-quit:
			return nil
		case err := <-f.fail:
			return err
		}
	})
	f.watchSubs = append(f.watchSubs, sub)
	return f.logs, sub, nil
}

func (f *fakeContract) UnpackLog(out interface{}, name string, l types.Log) error {
	return f.unpacker.UnpackLog(out, name, l)
}

func (f *fakeContract) watcherCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watchers
}

// mintLog builds a NewDeveloper log the way the node would deliver it.
func (f *fakeContract) mintLog(t *testing.T, sender common.Address, tokenID int64) types.Log {
	t.Helper()
	ev := f.parsed.Events[EventMinted]
	data, err := ev.Inputs.Pack(sender, big.NewInt(tokenID))
	require.NoError(t, err)
	return types.Log{
		Address: testContract,
		Topics:  []common.Hash{ev.ID},
		Data:    data,
		TxHash:  common.BigToHash(big.NewInt(tokenID)),
	}
}

type fakeReceipts struct {
	mu      sync.Mutex
	pending int
	receipt *types.Receipt
	err     error
	asked   int
}

func (f *fakeReceipts) TransactionReceipt(_ context.Context, _ common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked++
	if f.err != nil {
		return nil, f.err
	}
	if f.pending > 0 {
		f.pending--
		return nil, ethereum.NotFound
	}
	return f.receipt, nil
}
