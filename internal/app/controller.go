// Package app ties the wallet, the contract and the page state together. Every
// failure of an external call ends here as a log line and, where the user needs
// to know, a status message; nothing propagates to rendering.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"stickfigures/internal/ledger"
	"stickfigures/internal/nft"
	"stickfigures/internal/view"
	"stickfigures/internal/wallet"
)

const (
	msgNoWallet      = "Make sure you have a wallet configured!"
	msgDenied        = "Wallet access was denied. Connect again to retry."
	msgConnectFailed = "Could not connect to your wallet. Please try again."
	msgWrongNetwork  = "You are not connected to the expected test network!"
	msgMining        = "Mining... please wait."
	msgMintFailed    = "Something went wrong while minting. Please try again."
	msgMinted        = "Hey there! We've minted your NFT and sent it to your wallet. It may be blank right now. It can take a max of 10 min to show up on OpenSea."
)

type Wallet interface {
	CheckConnection(ctx context.Context) (wallet.Session, error)
	Connect(ctx context.Context, passphrase string) (wallet.Session, error)
	Disconnect()
}

type Gateway interface {
	Attach(signer *bind.TransactOpts)
	Detach()
	ReadMintCount(ctx context.Context) (uint64, error)
	ReadMaxSupply(ctx context.Context) (uint64, error)
	SubmitMint(ctx context.Context) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

type Events interface {
	Subscribe(ctx context.Context, handler nft.Handler) (*nft.Subscription, error)
	DeliverReceipt(receipt *types.Receipt, handler nft.Handler) int
	Close()
}

type Metrics interface {
	IncConnect(result string)
	IncMint(result string)
	IncEvent(origin string)
	IncReadFailure(method string)
	SetCounts(mintCount, maxSupply uint64)
}

type Options struct {
	Contract        common.Address
	MarketplaceBase string
	ExplorerBase    string
	// ReadTimeout bounds the count refresh triggered by a mint event.
	ReadTimeout time.Duration
}

type Deps struct {
	Wallet  Wallet
	Gateway Gateway
	Events  Events
	Store   *view.Store
	Ledger  ledger.Store
	Metrics Metrics
	Log     *zap.Logger
}

// Controller drives connect, refresh and mint for the single page session.
type Controller struct {
	opts    Options
	wallet  Wallet
	gateway Gateway
	events  Events
	store   *view.Store
	ledger  ledger.Store
	metrics Metrics
	log     *zap.Logger

	mu            sync.Mutex
	account       common.Address
	sessionCtx    context.Context
	cancelSession context.CancelFunc
	seen          map[eventKey]struct{}

	wg sync.WaitGroup
}

type eventKey struct {
	tx    common.Hash
	index uint
}

const maxSeenEvents = 1024

func New(opts Options, deps Deps) *Controller {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	m := deps.Metrics
	if m == nil {
		m = nopMetrics{}
	}
	led := deps.Ledger
	if led == nil {
		led = ledger.NewMemoryStore()
	}
	return &Controller{
		opts:    opts,
		wallet:  deps.Wallet,
		gateway: deps.Gateway,
		events:  deps.Events,
		store:   deps.Store,
		ledger:  led,
		metrics: m,
		log:     log.With(zap.String("component", "app")),
		seen:    make(map[eventKey]struct{}),
	}
}

func (c *Controller) Store() *view.Store {
	return c.store
}

func (c *Controller) Ledger() ledger.Store {
	return c.ledger
}

// Start silently picks up an already authorized account.
func (c *Controller) Start(ctx context.Context) {
	sess, err := c.wallet.CheckConnection(ctx)
	switch {
	case errors.Is(err, wallet.ErrProviderAbsent):
		c.log.Info("make sure you have a wallet configured")
	case errors.Is(err, wallet.ErrNoAuthorizedAccount):
		c.log.Info("no authorized account found")
	case err != nil:
		c.log.Warn("wallet probe failed", zap.Error(err))
	default:
		c.metrics.IncConnect("restored")
		c.establish(ctx, sess)
	}
}

// Connect prompts the wallet for access. The returned error has already been
// reported to the user; the page stays usable either way.
func (c *Controller) Connect(ctx context.Context, passphrase string) error {
	sess, err := c.wallet.Connect(ctx, passphrase)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrProviderAbsent):
			c.metrics.IncConnect("absent")
			c.store.SetStatus(msgNoWallet)
		case errors.Is(err, wallet.ErrAuthorizationDenied):
			c.metrics.IncConnect("denied")
			c.store.SetStatus(msgDenied)
		default:
			c.metrics.IncConnect("failed")
			c.store.SetStatus(msgConnectFailed)
		}
		c.log.Warn("connect failed", zap.Error(err))
		return err
	}
	c.metrics.IncConnect("ok")
	c.establish(ctx, sess)
	return nil
}

func (c *Controller) establish(ctx context.Context, sess wallet.Session) {
	c.mu.Lock()
	var stale context.CancelFunc
	if c.cancelSession != nil && c.account != sess.Account {
		stale = c.cancelSession
		c.cancelSession = nil
	}
	if c.cancelSession == nil {
		c.sessionCtx, c.cancelSession = context.WithCancel(context.Background())
	}
	sessionCtx := c.sessionCtx
	c.account = sess.Account
	c.mu.Unlock()

	if stale != nil {
		stale()
		c.events.Close()
	}

	c.gateway.Attach(sess.Signer)

	status := ""
	if sess.Warning != nil {
		status = msgWrongNetwork
		c.log.Warn("wrong network", zap.Error(sess.Warning))
	}
	c.store.Connected(sess.Account.Hex(), status)
	c.Refresh(ctx)

	// Subscribe hands back the live listener when there is one, so this also
	// retries a registration that failed earlier in the session.
	c.subscribe(sessionCtx)
}

func (c *Controller) subscribe(ctx context.Context) {
	if _, err := c.events.Subscribe(ctx, c.onMinted); err != nil {
		c.log.Warn("mint events unavailable, relying on receipts", zap.Error(err))
	}
}

// Disconnect ends the session and releases the event subscription.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	cancel := c.cancelSession
	c.cancelSession = nil
	c.sessionCtx = nil
	c.account = common.Address{}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.events.Close()
	c.gateway.Detach()
	c.wallet.Disconnect()
	c.store.Disconnected("")
	c.log.Info("disconnected")
}

// Refresh mirrors mint count and max supply from the contract. Failures are
// logged and leave the cached counts untouched.
func (c *Controller) Refresh(ctx context.Context) {
	count, err := c.gateway.ReadMintCount(ctx)
	if err != nil {
		c.readFailed("getDeveloperCount", err)
		return
	}
	maxSupply, err := c.gateway.ReadMaxSupply(ctx)
	if err != nil {
		c.readFailed("getMaxSupply", err)
		return
	}
	c.store.SetCounts(count, maxSupply)
	c.metrics.SetCounts(count, maxSupply)
}

func (c *Controller) readFailed(method string, err error) {
	c.metrics.IncReadFailure(method)
	if errors.Is(err, nft.ErrNoWallet) {
		c.log.Debug("read skipped", zap.String("method", method), zap.Error(err))
		return
	}
	c.log.Warn("read failed", zap.String("method", method), zap.Error(err))
}

// StartMint enters the minting phase and finishes the mint in the background.
// Once submitted the mint runs to completion regardless of ctx cancellation.
func (c *Controller) StartMint(ctx context.Context) error {
	if err := c.store.BeginMint(msgMining); err != nil {
		return err
	}
	bg := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.runMint(bg)
	}()
	return nil
}

// Mint submits a mint and blocks until it is mined or fails.
func (c *Controller) Mint(ctx context.Context) error {
	if err := c.store.BeginMint(msgMining); err != nil {
		return err
	}
	return c.runMint(ctx)
}

func (c *Controller) runMint(ctx context.Context) error {
	tx, err := c.gateway.SubmitMint(ctx)
	if err != nil {
		c.failMint(err)
		return err
	}
	c.metrics.IncMint("submitted")
	c.log.Info("mining, please wait", zap.String("tx", tx.Hash().Hex()))

	receipt, err := c.gateway.WaitMined(ctx, tx)
	if err != nil {
		c.failMint(err)
		return err
	}

	txURL := nft.TxURL(c.opts.ExplorerBase, tx.Hash())
	c.log.Info("mined", zap.String("tx_url", txURL), zap.Stringer("block", receipt.BlockNumber))
	c.store.SetTxURL(txURL)
	c.events.DeliverReceipt(receipt, c.onMinted)
	return nil
}

func (c *Controller) failMint(err error) {
	c.metrics.IncMint("failed")
	c.log.Warn("mint failed", zap.Error(err))
	c.store.MintFailed(msgMintFailed)
}

func (c *Controller) onMinted(ev nft.MintEvent) {
	c.mu.Lock()
	key := eventKey{tx: ev.Raw.TxHash, index: ev.Raw.Index}
	if _, dup := c.seen[key]; dup {
		c.mu.Unlock()
		return
	}
	if len(c.seen) >= maxSeenEvents {
		c.seen = make(map[eventKey]struct{})
	}
	c.seen[key] = struct{}{}
	own := c.account != (common.Address{}) && ev.Sender == c.account
	c.mu.Unlock()

	tokenID := ev.TokenId.String()
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.ReadTimeout)
	defer cancel()

	if !own {
		c.metrics.IncEvent("other")
		c.log.Debug("mint by another account", zap.String("sender", ev.Sender.Hex()), zap.String("token_id", tokenID))
		c.Refresh(ctx)
		return
	}

	c.metrics.IncEvent("own")
	link := nft.AssetURL(c.opts.MarketplaceBase, c.opts.Contract, tokenID)
	if c.store.MintSucceeded(link, msgMinted) {
		c.metrics.IncMint("minted")
	}
	c.log.Info("minted", zap.String("token_id", tokenID), zap.String("asset_url", link))

	c.Refresh(ctx)

	rec := ledger.Record{
		TokenID:  tokenID,
		Owner:    ev.Sender.Hex(),
		AssetURL: link,
		TxHash:   ev.Raw.TxHash.Hex(),
		MintedAt: time.Now().UTC(),
	}
	if err := c.ledger.Save(ctx, rec); err != nil {
		c.log.Warn("ledger save failed", zap.String("token_id", tokenID), zap.Error(err))
	}
}

// Wait blocks until background mints have finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

type nopMetrics struct{}

func (nopMetrics) IncConnect(string)        {}
func (nopMetrics) IncMint(string)           {}
func (nopMetrics) IncEvent(string)          {}
func (nopMetrics) IncReadFailure(string)    {}
func (nopMetrics) SetCounts(uint64, uint64) {}
