// Package wallet tracks the wallet session: connection state, active account,
// and chain, over an injected Provider capability.
package wallet

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ragebet/ragebet-go/pkg/eth"
)

// ErrUnknownChain is returned by SwitchChain when the wallet does not know
// the requested chain. The session falls back to AddChain.
var ErrUnknownChain = errors.New("unknown chain")

// ChainParams describes a chain for add-chain requests.
type ChainParams struct {
	ChainID           *big.Int
	Name              string
	RPCURLs           []string
	BlockExplorerURLs []string
	CurrencyName      string
	CurrencySymbol    string
	CurrencyDecimals  int
}

// Provider is the wallet capability injected into the session. Implementations
// wrap a browser extension bridge or, for headless use, a local key.
type Provider interface {
	// RequestAccounts asks the wallet for account access.
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	// ChainID returns the wallet's active chain.
	ChainID(ctx context.Context) (*big.Int, error)

	// SwitchChain asks the wallet to switch to the given chain. Returns
	// ErrUnknownChain when the chain must be added first.
	SwitchChain(ctx context.Context, chainID *big.Int) error

	// AddChain asks the wallet to add and switch to a chain.
	AddChain(ctx context.Context, params ChainParams) error

	// OnAccountsChanged registers a callback for account changes. The
	// returned function unsubscribes it.
	OnAccountsChanged(fn func([]common.Address)) (unsubscribe func())

	// OnChainChanged registers a callback for chain changes. The returned
	// function unsubscribes it.
	OnChainChanged(fn func(*big.Int)) (unsubscribe func())
}

// KeyProvider implements Provider over a local private key. It always has
// exactly one account and switches chains without wallet interaction.
type KeyProvider struct {
	wallet *eth.Wallet

	mu       sync.Mutex
	chainID  *big.Int
	known    map[string]bool // chain IDs the "wallet" knows
	chainFns []func(*big.Int)
	acctFns  []func([]common.Address)
}

// NewKeyProvider creates a key-backed provider on the given chain.
func NewKeyProvider(w *eth.Wallet, chainID *big.Int) *KeyProvider {
	return &KeyProvider{
		wallet:  w,
		chainID: new(big.Int).Set(chainID),
		known:   map[string]bool{chainID.String(): true},
	}
}

// Wallet returns the underlying signing wallet.
func (p *KeyProvider) Wallet() *eth.Wallet {
	return p.wallet
}

func (p *KeyProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{p.wallet.Address()}, nil
}

func (p *KeyProvider) ChainID(ctx context.Context) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.chainID), nil
}

func (p *KeyProvider) SwitchChain(ctx context.Context, chainID *big.Int) error {
	p.mu.Lock()
	if !p.known[chainID.String()] {
		p.mu.Unlock()
		return ErrUnknownChain
	}
	p.chainID = new(big.Int).Set(chainID)
	fns := append([]func(*big.Int){}, p.chainFns...)
	p.mu.Unlock()

	for _, fn := range fns {
		if fn != nil {
			fn(new(big.Int).Set(chainID))
		}
	}
	return nil
}

func (p *KeyProvider) AddChain(ctx context.Context, params ChainParams) error {
	p.mu.Lock()
	p.known[params.ChainID.String()] = true
	p.mu.Unlock()
	return p.SwitchChain(ctx, params.ChainID)
}

func (p *KeyProvider) OnAccountsChanged(fn func([]common.Address)) func() {
	p.mu.Lock()
	p.acctFns = append(p.acctFns, fn)
	idx := len(p.acctFns) - 1
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		p.acctFns[idx] = nil
		p.mu.Unlock()
	}
}

func (p *KeyProvider) OnChainChanged(fn func(*big.Int)) func() {
	p.mu.Lock()
	p.chainFns = append(p.chainFns, fn)
	idx := len(p.chainFns) - 1
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		p.chainFns[idx] = nil
		p.mu.Unlock()
	}
}
