package nft

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"
)

// MintEvent is a decoded NewDeveloper emission.
type MintEvent struct {
	Sender  common.Address
	TokenId *big.Int
	Raw     types.Log
}

type Handler func(MintEvent)

// Subscriber keeps at most one live listener for mint events.
type Subscriber struct {
	contract Contract
	address  common.Address
	log      *zap.Logger

	mu      sync.Mutex
	current *Subscription
}

func NewSubscriber(address common.Address, contract Contract, log *zap.Logger) *Subscriber {
	if log == nil {
		log = zap.NewNop()
	}
	return &Subscriber{
		contract: contract,
		address:  address,
		log:      log.With(zap.String("component", "subscriber")),
	}
}

// Subscribe registers handler for every mint event visible to the provider. While a
// previous subscription is still live it is returned as is and handler is ignored.
func (s *Subscriber) Subscribe(ctx context.Context, handler Handler) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.Active() {
		return s.current, nil
	}

	logs, sub, err := s.contract.WatchLogs(&bind.WatchOpts{Context: ctx}, EventMinted)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", EventMinted, err)
	}

	subscription := &Subscription{
		sub:  sub,
		done: make(chan struct{}),
	}
	go subscription.loop(logs, s.decode, handler, s.log)
	s.current = subscription

	s.log.Info("listening for mint events", zap.String("contract", s.address.Hex()))
	return subscription, nil
}

// Close releases the live subscription, if any.
func (s *Subscriber) Close() {
	s.mu.Lock()
	current := s.current
	s.current = nil
	s.mu.Unlock()

	if current != nil {
		current.Unsubscribe()
	}
}

// DeliverReceipt hands the mint events found in a mined receipt to handler.
// It returns how many events were delivered.
func (s *Subscriber) DeliverReceipt(receipt *types.Receipt, handler Handler) int {
	if receipt == nil {
		return 0
	}
	delivered := 0
	for _, l := range receipt.Logs {
		if l == nil || l.Address != s.address || len(l.Topics) == 0 {
			continue
		}
		ev, err := s.decode(*l)
		if err != nil {
			s.log.Debug("skipping receipt log", zap.Uint("index", l.Index), zap.Error(err))
			continue
		}
		handler(ev)
		delivered++
	}
	return delivered
}

func (s *Subscriber) decode(l types.Log) (MintEvent, error) {
	var ev MintEvent
	if err := s.contract.UnpackLog(&ev, EventMinted, l); err != nil {
		return MintEvent{}, fmt.Errorf("unpack %s: %w", EventMinted, err)
	}
	if ev.TokenId == nil {
		return MintEvent{}, fmt.Errorf("unpack %s: missing token id", EventMinted)
	}
	ev.Raw = l
	return ev, nil
}

// Subscription is a live mint event listener.
type Subscription struct {
	sub  event.Subscription
	once sync.Once
	done chan struct{}

	mu  sync.Mutex
	err error
}

func (s *Subscription) loop(logs <-chan types.Log, decode func(types.Log) (MintEvent, error), handler Handler, log *zap.Logger) {
	defer close(s.done)
	for {
		select {
		case l := <-logs:
			if l.Removed {
				continue
			}
			ev, err := decode(l)
			if err != nil {
				log.Warn("undecodable mint event", zap.String("tx", l.TxHash.Hex()), zap.Error(err))
				continue
			}
			handler(ev)
		case err := <-s.sub.Err():
			if err != nil {
				log.Warn("mint event subscription dropped", zap.Error(err))
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
			}
			return
		}
	}
}

// Active reports whether the listener is still delivering events.
func (s *Subscription) Active() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Err returns the error that ended the subscription, nil after a clean Unsubscribe.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Unsubscribe stops delivery and waits for the listener to exit. It must not be
// called from inside a handler.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.sub.Unsubscribe)
	<-s.done
}
