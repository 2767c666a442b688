package view

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/event"
)

// Phase is the page's coarse state.
type Phase int

const (
	Disconnected Phase = iota
	ConnectedIdle
	Minting
	Minted
)

func (p Phase) String() string {
	switch p {
	case Disconnected:
		return "disconnected"
	case ConnectedIdle:
		return "connected-idle"
	case Minting:
		return "minting"
	case Minted:
		return "minted"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	for _, candidate := range []Phase{Disconnected, ConnectedIdle, Minting, Minted} {
		if candidate.String() == string(b) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

var (
	ErrNotConnected = errors.New("no account connected")
	ErrMintInFlight = errors.New("a mint is already in progress")
)

// Snapshot is an immutable copy of the page state. Counts mirror the contract
// at the last successful read and may be stale.
type Snapshot struct {
	Phase       Phase  `json:"phase"`
	Account     string `json:"account"`
	MintCount   uint64 `json:"mintCount"`
	MaxSupply   uint64 `json:"maxSupply"`
	CountsKnown bool   `json:"countsKnown"`
	LastMinted  string `json:"lastMinted,omitempty"`
	TxURL       string `json:"txUrl,omitempty"`
	Status      string `json:"status,omitempty"`
	Version     uint64 `json:"version"`
}

func (s Snapshot) Connected() bool { return s.Account != "" }

func (s Snapshot) InProgress() bool { return s.Phase == Minting }

// Store holds the single page state and broadcasts every change.
type Store struct {
	mu   sync.Mutex
	snap Snapshot
	feed event.Feed
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe delivers every new snapshot to ch. Receivers must keep up, Send
// blocks until each subscriber took the value.
func (s *Store) Subscribe(ch chan<- Snapshot) event.Subscription {
	return s.feed.Subscribe(ch)
}

// update applies fn under the lock and publishes the result when fn reports a change.
func (s *Store) update(fn func(*Snapshot) bool) bool {
	s.mu.Lock()
	if !fn(&s.snap) {
		s.mu.Unlock()
		return false
	}
	s.snap.Version++
	snap := s.snap
	s.mu.Unlock()

	s.feed.Send(snap)
	return true
}

// Connected records the active account. A different account starts a new
// session and forgets the previous session's mint link.
func (s *Store) Connected(account, status string) {
	s.update(func(snap *Snapshot) bool {
		if snap.Account != account {
			snap.LastMinted = ""
			snap.TxURL = ""
		}
		snap.Account = account
		if snap.Phase == Disconnected {
			snap.Phase = ConnectedIdle
		}
		snap.Status = status
		return true
	})
}

func (s *Store) Disconnected(status string) {
	s.update(func(snap *Snapshot) bool {
		snap.Phase = Disconnected
		snap.Account = ""
		snap.LastMinted = ""
		snap.TxURL = ""
		snap.Status = status
		return true
	})
}

func (s *Store) SetCounts(mintCount, maxSupply uint64) {
	s.update(func(snap *Snapshot) bool {
		if snap.CountsKnown && snap.MintCount == mintCount && snap.MaxSupply == maxSupply {
			return false
		}
		snap.MintCount = mintCount
		snap.MaxSupply = maxSupply
		snap.CountsKnown = true
		return true
	})
}

func (s *Store) SetStatus(status string) {
	s.update(func(snap *Snapshot) bool {
		if snap.Status == status {
			return false
		}
		snap.Status = status
		return true
	})
}

// SetTxURL records the explorer link of the last confirmed mint transaction.
func (s *Store) SetTxURL(url string) {
	s.update(func(snap *Snapshot) bool {
		if snap.TxURL == url {
			return false
		}
		snap.TxURL = url
		return true
	})
}

// BeginMint enters the minting phase. It refuses while disconnected or while
// another mint is in flight.
func (s *Store) BeginMint(status string) error {
	var err error
	s.update(func(snap *Snapshot) bool {
		switch snap.Phase {
		case Disconnected:
			err = ErrNotConnected
			return false
		case Minting:
			err = ErrMintInFlight
			return false
		}
		snap.Phase = Minting
		snap.TxURL = ""
		snap.Status = status
		return true
	})
	return err
}

// MintSucceeded leaves the minting phase with the minted asset link. It reports
// whether it was the call that cleared the in-progress flag.
func (s *Store) MintSucceeded(link, status string) bool {
	return s.update(func(snap *Snapshot) bool {
		if snap.Phase != Minting {
			return false
		}
		snap.Phase = Minted
		snap.LastMinted = link
		snap.Status = status
		return true
	})
}

// MintFailed returns to connected-idle and drops the last minted link. It
// reports whether it was the call that cleared the in-progress flag.
func (s *Store) MintFailed(status string) bool {
	return s.update(func(snap *Snapshot) bool {
		if snap.Phase != Minting {
			return false
		}
		snap.Phase = ConnectedIdle
		snap.LastMinted = ""
		snap.Status = status
		return true
	})
}
