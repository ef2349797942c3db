package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ragebet/ragebet-go/core"
)

// Session tracks the active wallet connection. It is safe for concurrent use.
type Session struct {
	provider Provider

	mu        sync.RWMutex
	connected bool
	account   common.Address
	chainID   *big.Int

	unsubAccounts func()
	unsubChain    func()

	// onReset fires when a chain change invalidates contract handles.
	onReset func(chainID *big.Int)
}

// NewSession creates a session over the given provider. A nil provider is
// allowed; Connect then fails with WalletUnavailable.
func NewSession(provider Provider) *Session {
	return &Session{provider: provider}
}

// OnReset sets a callback fired when the active chain changes. Contract
// handles bound to the previous chain must be rebuilt.
func (s *Session) OnReset(fn func(chainID *big.Int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReset = fn
}

// Connect requests account access and derives the active chain. On user
// rejection the session stays disconnected.
func (s *Session) Connect(ctx context.Context) error {
	if s.provider == nil {
		return core.ErrWalletUnavailable
	}

	accounts, err := s.provider.RequestAccounts(ctx)
	if err != nil {
		if msg := strings.ToLower(err.Error()); strings.Contains(msg, "rejected") || strings.Contains(msg, "denied") {
			return fmt.Errorf("%w: %s", core.ErrUserRejected, err.Error())
		}
		return fmt.Errorf("%w: %s", core.ErrWalletUnavailable, err.Error())
	}
	if len(accounts) == 0 {
		return fmt.Errorf("%w: no accounts available", core.ErrWalletUnavailable)
	}

	chainID, err := s.provider.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}

	s.mu.Lock()
	s.connected = true
	s.account = accounts[0]
	s.chainID = chainID
	if s.unsubAccounts == nil {
		s.unsubAccounts = s.provider.OnAccountsChanged(s.handleAccountsChanged)
	}
	if s.unsubChain == nil {
		s.unsubChain = s.provider.OnChainChanged(s.handleChainChanged)
	}
	s.mu.Unlock()

	return nil
}

// Disconnect clears local session state. On-chain approvals are not revoked.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connected = false
	s.account = common.Address{}
	s.chainID = nil
	if s.unsubAccounts != nil {
		s.unsubAccounts()
		s.unsubAccounts = nil
	}
	if s.unsubChain != nil {
		s.unsubChain()
		s.unsubChain = nil
	}
}

// SwitchNetwork asks the wallet to switch to the target chain, falling back
// to an add-chain request when the chain is unknown. Failure is non-fatal:
// the session stays on the prior chain.
func (s *Session) SwitchNetwork(ctx context.Context, target ChainParams) error {
	if s.provider == nil {
		return core.ErrWalletUnavailable
	}

	err := s.provider.SwitchChain(ctx, target.ChainID)
	if errors.Is(err, ErrUnknownChain) {
		if addErr := s.provider.AddChain(ctx, target); addErr != nil {
			return fmt.Errorf("add chain %s: %w", target.ChainID, addErr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("switch chain %s: %w", target.ChainID, err)
	}
	return nil
}

// Connected reports whether a wallet session is active.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Account returns the active account address.
func (s *Session) Account() common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

// ChainID returns the active chain, or nil when disconnected.
func (s *Session) ChainID() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.chainID == nil {
		return nil
	}
	return new(big.Int).Set(s.chainID)
}

func (s *Session) handleAccountsChanged(accounts []common.Address) {
	if len(accounts) == 0 {
		s.Disconnect()
		return
	}
	s.mu.Lock()
	s.account = accounts[0]
	s.mu.Unlock()
}

func (s *Session) handleChainChanged(chainID *big.Int) {
	s.mu.Lock()
	s.chainID = chainID
	reset := s.onReset
	s.mu.Unlock()

	// Contract handles bound to the old chain are now invalid.
	if reset != nil {
		reset(chainID)
	}
}
