package nft

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T) (*Gateway, *fakeContract, *fakeReceipts) {
	t.Helper()
	contract := newFakeContract(t)
	receipts := &fakeReceipts{}
	gw := NewGateway(testContract, contract, receipts, nil)
	gw.SetPollInterval(time.Millisecond)
	return gw, contract, receipts
}

func TestGatewayFailsFastWithoutSigner(t *testing.T) {
	gw, contract, _ := newTestGateway(t)
	ctx := context.Background()

	_, err := gw.ReadMintCount(ctx)
	assert.ErrorIs(t, err, ErrNoWallet)
	_, err = gw.ReadMaxSupply(ctx)
	assert.ErrorIs(t, err, ErrNoWallet)
	_, err = gw.SubmitMint(ctx)
	assert.ErrorIs(t, err, ErrNoWallet)

	assert.Empty(t, contract.calls, "no call may reach the contract without a signer")
}

func TestGatewayReadsCounts(t *testing.T) {
	gw, contract, _ := newTestGateway(t)
	contract.reads[methodMintCount] = big.NewInt(7)
	contract.reads[methodMaxSupply] = big.NewInt(50)
	gw.Attach(&bind.TransactOpts{From: testSender})

	count, err := gw.ReadMintCount(context.Background())
	require.NoError(t, err)
	maxSupply, err := gw.ReadMaxSupply(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(7), count)
	assert.Equal(t, uint64(50), maxSupply)
	assert.Equal(t, []string{methodMintCount, methodMaxSupply}, contract.calls)
	assert.Equal(t, testSender, contract.callFrom[0])
}

func TestGatewayReadFailureIsWrapped(t *testing.T) {
	gw, contract, _ := newTestGateway(t)
	contract.readErr = errors.New("connection refused")
	gw.Attach(&bind.TransactOpts{From: testSender})

	_, err := gw.ReadMintCount(context.Background())
	assert.ErrorContains(t, err, "call getDeveloperCount")
	assert.ErrorContains(t, err, "connection refused")
}

func TestGatewayDetachDropsSigner(t *testing.T) {
	gw, contract, _ := newTestGateway(t)
	contract.reads[methodMintCount] = big.NewInt(1)
	gw.Attach(&bind.TransactOpts{From: testSender})
	gw.Detach()

	_, err := gw.ReadMintCount(context.Background())
	assert.ErrorIs(t, err, ErrNoWallet)
}

func TestGatewaySubmitAndWaitMined(t *testing.T) {
	gw, contract, receipts := newTestGateway(t)
	gw.Attach(&bind.TransactOpts{From: testSender})
	receipts.pending = 2
	receipts.receipt = &types.Receipt{Status: types.ReceiptStatusSuccessful}

	tx, err := gw.SubmitMint(context.Background())
	require.NoError(t, err)
	require.Len(t, contract.sent, 1)

	receipt, err := gw.WaitMined(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, 3, receipts.asked)
}

func TestGatewayWaitMinedReverted(t *testing.T) {
	gw, _, receipts := newTestGateway(t)
	gw.Attach(&bind.TransactOpts{From: testSender})
	receipts.receipt = &types.Receipt{Status: types.ReceiptStatusFailed}

	tx, err := gw.SubmitMint(context.Background())
	require.NoError(t, err)

	_, err = gw.WaitMined(context.Background(), tx)
	assert.ErrorIs(t, err, ErrMintReverted)
}

func TestGatewayWaitMinedNetworkError(t *testing.T) {
	gw, _, receipts := newTestGateway(t)
	gw.Attach(&bind.TransactOpts{From: testSender})
	receipts.err = errors.New("dial tcp: i/o timeout")

	tx, err := gw.SubmitMint(context.Background())
	require.NoError(t, err)

	_, err = gw.WaitMined(context.Background(), tx)
	assert.ErrorContains(t, err, "i/o timeout")
}

func TestGatewayWaitMinedHonoursContext(t *testing.T) {
	gw, _, receipts := newTestGateway(t)
	gw.Attach(&bind.TransactOpts{From: testSender})
	receipts.pending = 1 << 30

	tx, err := gw.SubmitMint(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = gw.WaitMined(ctx, tx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGatewaySubmitError(t *testing.T) {
	gw, contract, _ := newTestGateway(t)
	gw.Attach(&bind.TransactOpts{From: testSender})
	contract.txErr = errors.New("insufficient funds for gas")

	_, err := gw.SubmitMint(context.Background())
	assert.ErrorContains(t, err, "mint tx")
}
