package wallet

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticChain struct {
	id  *big.Int
	err error
}

func (s staticChain) ChainID(context.Context) (*big.Int, error) {
	return s.id, s.err
}

func newTestKeystore(t *testing.T) *keystore.KeyStore {
	t.Helper()
	return keystore.NewKeyStore(t.TempDir(), keystore.LightScryptN, keystore.LightScryptP)
}

func TestConnectorWithoutProvider(t *testing.T) {
	c := NewConnector(nil, big.NewInt(4), nil)

	_, err := c.CheckConnection(context.Background())
	assert.ErrorIs(t, err, ErrProviderAbsent)
	_, err = c.Connect(context.Background(), "")
	assert.ErrorIs(t, err, ErrProviderAbsent)
}

func TestKeystoreCheckConnectionDoesNotPrompt(t *testing.T) {
	ks := newTestKeystore(t)
	_, err := ks.NewAccount("secret")
	require.NoError(t, err)

	c := NewConnector(NewKeystoreProvider(ks, staticChain{id: big.NewInt(4)}), big.NewInt(4), nil)

	_, err = c.CheckConnection(context.Background())
	assert.ErrorIs(t, err, ErrNoAuthorizedAccount)
}

func TestKeystoreConnectAuthorizesAccount(t *testing.T) {
	ks := newTestKeystore(t)
	acct, err := ks.NewAccount("secret")
	require.NoError(t, err)

	c := NewConnector(NewKeystoreProvider(ks, staticChain{id: big.NewInt(4)}), big.NewInt(4), nil)
	ctx := context.Background()

	s, err := c.Connect(ctx, "secret")
	require.NoError(t, err)
	assert.Equal(t, acct.Address, s.Account)
	assert.Equal(t, acct.Address, s.Signer.From)
	assert.NoError(t, s.Warning)

	again, err := c.CheckConnection(ctx)
	require.NoError(t, err)
	assert.Equal(t, acct.Address, again.Account)
}

func TestKeystoreConnectRejected(t *testing.T) {
	ks := newTestKeystore(t)
	_, err := ks.NewAccount("secret")
	require.NoError(t, err)

	c := NewConnector(NewKeystoreProvider(ks, staticChain{id: big.NewInt(4)}), big.NewInt(4), nil)

	_, err = c.Connect(context.Background(), "wrong")
	assert.ErrorIs(t, err, ErrAuthorizationDenied)
}

func TestKeystoreEmptyIsAbsent(t *testing.T) {
	c := NewConnector(NewKeystoreProvider(newTestKeystore(t), staticChain{id: big.NewInt(4)}), big.NewInt(4), nil)

	_, err := c.Connect(context.Background(), "secret")
	assert.ErrorIs(t, err, ErrProviderAbsent)
}

func TestKeystoreRevoke(t *testing.T) {
	ks := newTestKeystore(t)
	_, err := ks.NewAccount("secret")
	require.NoError(t, err)
	p := NewKeystoreProvider(ks, staticChain{id: big.NewInt(4)})

	_, err = p.RequestAccounts(context.Background(), "secret")
	require.NoError(t, err)
	p.Revoke()

	accts, err := p.Accounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accts)
}

func TestNetworkMismatchIsOnlyAWarning(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	p, err := NewKeyProvider(hexutil.Encode(crypto.FromECDSA(key)), staticChain{id: big.NewInt(1)})
	require.NoError(t, err)

	c := NewConnector(p, big.NewInt(4), nil)
	s, err := c.Connect(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), s.Account)
	assert.ErrorIs(t, s.Warning, ErrNetworkMismatch)
	assert.Equal(t, int64(1), s.ChainID.Int64())
}

func TestKeyProviderIsPreAuthorized(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	p, err := NewKeyProvider(hex.EncodeToString(crypto.FromECDSA(key)), staticChain{id: big.NewInt(4)})
	require.NoError(t, err)

	s, err := NewConnector(p, big.NewInt(4), nil).CheckConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), s.Account)
}

func TestKeyProviderRejectsBadKey(t *testing.T) {
	_, err := NewKeyProvider("not-a-key", staticChain{})
	assert.ErrorContains(t, err, "parse private key")
}

func TestChainIDFailure(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	p, err := NewKeyProvider(hex.EncodeToString(crypto.FromECDSA(key)), staticChain{err: errors.New("rpc down")})
	require.NoError(t, err)

	_, err = NewConnector(p, big.NewInt(4), nil).Connect(context.Background(), "")
	assert.ErrorContains(t, err, "rpc down")
}
