// Package chain abstracts the external token custody the ledger settles
// against. The core only needs two movements: pulling externally-held
// value into a ledger balance and releasing ledger value back out.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/reelpay/ledger/pkg/logger"
)

// Bridge moves externally-custodied token value into and out of the
// ledger. Implementations talk to whatever custody backs the deployment
// (an on-chain contract, a payment processor, a test double).
type Bridge interface {
	// Collect pulls amount from the external holding of address into
	// the ledger's custody.
	Collect(ctx context.Context, address string, amount int64) error
	// Release pushes amount from the ledger's custody back to the
	// external holding of address.
	Release(ctx context.Context, address string, amount int64) error
}

// ErrBridgeClosed is returned by a simulator that has been shut down.
var ErrBridgeClosed = errors.New("chain: bridge closed")

// Simulator is an in-process Bridge for development and tests. It tracks
// net collected value per address so tests can assert that ledger-side
// conservation matches the external side.
type Simulator struct {
	mu        sync.Mutex
	collected map[string]int64
	released  map[string]int64
	closed    bool
	log       *logger.Logger
}

// NewSimulator creates an open simulator.
func NewSimulator(log *logger.Logger) *Simulator {
	if log == nil {
		log = logger.NewDefault("chain-sim")
	}
	return &Simulator{
		collected: make(map[string]int64),
		released:  make(map[string]int64),
		log:       log,
	}
}

func (s *Simulator) Collect(_ context.Context, address string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("chain: negative collect amount %d", amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrBridgeClosed
	}
	s.collected[address] += amount
	s.log.Debugf("collected %d from %s", amount, address)
	return nil
}

func (s *Simulator) Release(_ context.Context, address string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("chain: negative release amount %d", amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrBridgeClosed
	}
	s.released[address] += amount
	s.log.Debugf("released %d to %s", amount, address)
	return nil
}

// NetCollected reports total collected minus total released for address.
func (s *Simulator) NetCollected(address string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collected[address] - s.released[address]
}

// Close rejects further movements.
func (s *Simulator) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
