// Package betflow runs the bet placement workflow: a fixed sequence of
// checks and transactions that either ends in a confirmed on-chain bet or
// aborts with a classified error before any funds move.
package betflow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/ragebet/ragebet-go/core"
	"github.com/ragebet/ragebet-go/pkg/backend"
	"github.com/ragebet/ragebet-go/pkg/metrics"
	"github.com/ragebet/ragebet-go/pkg/notify"
	"github.com/ragebet/ragebet-go/pkg/token"
	"github.com/ragebet/ragebet-go/pkg/wallet"
)

// Gateway is the contract surface the flow needs. *chain.Gateway satisfies
// it; tests substitute a fake.
type Gateway interface {
	GetMarket(ctx context.Context, marketID *big.Int) (*core.Market, error)
	GetTokenBalance(ctx context.Context, account common.Address) (*big.Int, error)
	GetAllowance(ctx context.Context, owner common.Address) (*big.Int, error)
	Approve(ctx context.Context, amount *big.Int) (*gethtypes.Receipt, error)
	EstimatePlaceBet(ctx context.Context, marketID *big.Int, agreeWithAI bool, amount *big.Int) (uint64, error)
	PlaceBet(ctx context.Context, marketID *big.Int, agreeWithAI bool, amount *big.Int) (*gethtypes.Receipt, error)
	ResolveMarket(ctx context.Context, marketID *big.Int, aiWasRight bool) (*gethtypes.Receipt, error)
}

// ErrInFlight rejects a second submission for a market while the first is
// still running.
var ErrInFlight = errors.New("bet already in progress for this market")

// Stage represents a stage in the bet placement workflow.
type Stage string

const (
	StageWalletCheck     Stage = "wallet_check"
	StageInputValidation Stage = "input_validation"
	StageMarketState     Stage = "market_state"
	StageBalanceCheck    Stage = "balance_check"
	StageAllowanceCheck  Stage = "allowance_check"
	StagePreflight       Stage = "preflight"
	StageSubmit          Stage = "submit"
	StageReceiptMetadata Stage = "receipt_metadata"
	StageRefresh         Stage = "refresh"
)

// StageResult holds the result of a stage execution.
type StageResult struct {
	Stage     Stage         `json:"stage"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Config configures the bet flow.
type Config struct {
	// UnboundedApproval approves the maximum allowance once instead of
	// approving per bet.
	UnboundedApproval bool
}

// BetRequest describes one bet placement.
type BetRequest struct {
	MarketID    *big.Int
	AgreeWithAI bool

	// Amount is the stake as a decimal string, e.g. "50" or "12.5".
	Amount string

	// Metadata inputs for the bet-receipt NFT. Optional; metadata
	// generation is skipped when MatchID is empty.
	MatchID string
	AIRoast string
}

// BetReceipt is the outcome of a successful flow run.
type BetReceipt struct {
	TxHash   string
	Side     core.BetSide
	Amount   *big.Int
	Approved bool // whether an approval transaction was sent

	// Metadata is best-effort: a failure here leaves MetadataErr set and
	// the bet still stands.
	Metadata    *backend.NFTMetadata
	MetadataErr error
}

// Flow coordinates bet placement across the wallet session, the contract
// gateway, and the backend.
type Flow struct {
	config  Config
	session *wallet.Session
	gateway Gateway
	api     *backend.Client
	bus     *notify.Bus
	metrics *metrics.BettingMetrics

	mu       sync.Mutex
	inflight map[string]bool // market id -> running

	// Last observed balance, reused by input validation for a cheap
	// pre-check before the authoritative on-chain read.
	balanceMu  sync.RWMutex
	lastSeen   *big.Int
	lastSeenAt time.Time

	// Callbacks
	onStageComplete func(*StageResult)
}

// NewFlow creates a bet flow.
func NewFlow(config Config, session *wallet.Session, gateway Gateway, api *backend.Client, bus *notify.Bus, m *metrics.BettingMetrics) *Flow {
	if m == nil {
		m = metrics.Default()
	}
	return &Flow{
		config:   config,
		session:  session,
		gateway:  gateway,
		api:      api,
		bus:      bus,
		metrics:  m,
		inflight: make(map[string]bool),
	}
}

// OnStageComplete sets a callback for stage completions.
func (f *Flow) OnStageComplete(fn func(*StageResult)) {
	f.onStageComplete = fn
}

// CachedBalance returns the last observed balance, or nil when none.
func (f *Flow) CachedBalance() *big.Int {
	f.balanceMu.RLock()
	defer f.balanceMu.RUnlock()
	if f.lastSeen == nil {
		return nil
	}
	return new(big.Int).Set(f.lastSeen)
}

func (f *Flow) setCachedBalance(b *big.Int) {
	f.balanceMu.Lock()
	f.lastSeen = new(big.Int).Set(b)
	f.lastSeenAt = time.Now()
	f.balanceMu.Unlock()
}

// PlaceBet runs the full workflow. It aborts on the first stage error with
// no automatic retries; a metadata failure after submission is reported as a
// warning on the receipt, not an error.
func (f *Flow) PlaceBet(ctx context.Context, req BetRequest) (*BetReceipt, error) {
	if req.MarketID == nil {
		return nil, &core.ValidationError{Field: "market", Reason: "missing market id"}
	}
	key := req.MarketID.String()

	f.mu.Lock()
	if f.inflight[key] {
		f.mu.Unlock()
		return nil, ErrInFlight
	}
	f.inflight[key] = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.inflight, key)
		f.mu.Unlock()
	}()

	start := time.Now()
	receipt, err := f.run(ctx, req)
	side := core.Side(req.AgreeWithAI)

	if err != nil {
		f.metrics.RecordFlow("failed", time.Since(start).Seconds())
		f.metrics.RecordBet(string(side), "failed", 0)
		if f.bus != nil {
			f.bus.Error(core.UserMessage(err))
		}
		return nil, err
	}

	f.metrics.RecordFlow("success", time.Since(start).Seconds())
	f.metrics.RecordBet(string(side), "success", amountRage(receipt.Amount))
	if f.bus != nil {
		f.bus.Success(fmt.Sprintf("Bet placed: %s RAGE on %s", token.Format(receipt.Amount), side))
		if receipt.MetadataErr != nil {
			f.bus.Warning("Bet placed, but receipt NFT metadata could not be generated.")
		}
	}
	return receipt, nil
}

// InFlight reports whether a bet is currently running for the market.
func (f *Flow) InFlight(marketID *big.Int) bool {
	if marketID == nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inflight[marketID.String()]
}

func (f *Flow) run(ctx context.Context, req BetRequest) (*BetReceipt, error) {
	// Stage 1: wallet check.
	err := f.stage(StageWalletCheck, func() error {
		if f.session == nil || !f.session.Connected() {
			return core.ErrWalletUnavailable
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Stage 2: input validation. All amount math happens on base units.
	var amount *big.Int
	err = f.stage(StageInputValidation, func() error {
		var verr error
		amount, verr = token.Parse(req.Amount)
		if verr != nil {
			return &core.ValidationError{Field: "amount", Reason: verr.Error()}
		}
		if !token.IsPositive(amount) {
			return &core.ValidationError{Field: "amount", Reason: "stake must be greater than zero"}
		}
		if req.MarketID.Sign() < 0 {
			return &core.ValidationError{Field: "market", Reason: "invalid market id"}
		}
		if cached := f.CachedBalance(); cached != nil && !token.Covers(cached, amount) {
			return &core.ValidationError{Field: "amount", Reason: "stake exceeds balance"}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Stage 3: market must exist, be unresolved, and still be open.
	err = f.stage(StageMarketState, func() error {
		market, merr := f.gateway.GetMarket(ctx, req.MarketID)
		if merr != nil {
			return merr
		}
		if market == nil {
			return core.ErrContractMisconfigured
		}
		if market.Resolved {
			return core.ErrMarketResolved
		}
		if !market.Open(time.Now()) {
			return core.ErrMarketClosed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	account := f.session.Account()

	// Stage 4: authoritative balance check.
	err = f.stage(StageBalanceCheck, func() error {
		balance, berr := f.gateway.GetTokenBalance(ctx, account)
		if berr != nil {
			return berr
		}
		f.setCachedBalance(balance)
		f.metrics.UpdateBalance(account.Hex(), amountRage(balance))
		if !token.Covers(balance, amount) {
			return core.ErrInsufficientFunds
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Stage 5: allowance check. Skipped when the existing allowance already
	// covers the stake, so re-runs never re-approve.
	approved := false
	err = f.stage(StageAllowanceCheck, func() error {
		allowance, aerr := f.gateway.GetAllowance(ctx, account)
		if aerr != nil {
			return aerr
		}
		if token.Covers(allowance, amount) {
			return nil
		}

		grant := amount
		mode := "exact"
		if f.config.UnboundedApproval {
			grant = token.MaxApproval
			mode = "unbounded"
		}
		if _, aerr := f.gateway.Approve(ctx, grant); aerr != nil {
			f.metrics.RecordApproval(mode, "failed")
			return fmt.Errorf("%w: %s", core.ErrApprovalFailed, aerr.Error())
		}
		f.metrics.RecordApproval(mode, "success")
		approved = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Stage 6: preflight simulation. A doomed bet aborts here without
	// spending gas.
	err = f.stage(StagePreflight, func() error {
		_, perr := f.gateway.EstimatePlaceBet(ctx, req.MarketID, req.AgreeWithAI, amount)
		return perr
	})
	if err != nil {
		return nil, err
	}

	// Stage 7: submit and await one confirmation.
	receipt := &BetReceipt{
		Side:     core.Side(req.AgreeWithAI),
		Amount:   amount,
		Approved: approved,
	}
	err = f.stage(StageSubmit, func() error {
		submitted := time.Now()
		txr, serr := f.gateway.PlaceBet(ctx, req.MarketID, req.AgreeWithAI, amount)
		if serr != nil {
			return serr
		}
		receipt.TxHash = txr.TxHash.Hex()
		f.metrics.RecordConfirmation("placeBet", time.Since(submitted).Seconds())
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Stage 8: bet-receipt metadata. The bet is already on-chain, so this
	// stage can only warn.
	f.stage(StageReceiptMetadata, func() error {
		if f.api == nil || req.MatchID == "" {
			return nil
		}
		meta, merr := f.api.GenerateNFTMetadata(ctx, backend.NFTMetadataRequest{
			MatchID:     req.MatchID,
			UserChoice:  string(receipt.Side),
			AIRoast:     req.AIRoast,
			UserAddress: account.Hex(),
		})
		if merr != nil {
			receipt.MetadataErr = merr
			return merr
		}
		receipt.Metadata = meta
		return nil
	})

	// Stage 9: refresh local state. Failures here never fail the bet.
	f.stage(StageRefresh, func() error {
		balance, berr := f.gateway.GetTokenBalance(ctx, account)
		if berr != nil {
			return berr
		}
		f.setCachedBalance(balance)
		f.metrics.UpdateBalance(account.Hex(), amountRage(balance))
		return nil
	})

	return receipt, nil
}

// ResolveMarket asks the oracle to judge a finished match, then submits the
// judgment on-chain. The two steps are not atomic; a retry re-derives the
// judgment from the oracle rather than trusting local state.
func (f *Flow) ResolveMarket(ctx context.Context, marketID *big.Int, matchID string) (bool, error) {
	if f.api == nil {
		return false, core.ErrBackendUnavailable
	}

	res, err := f.api.ResolveMarket(ctx, backend.ResolveRequest{
		MarketID: marketID.Int64(),
		MatchID:  matchID,
		Status:   "Unknown",
	})
	if err != nil {
		return false, fmt.Errorf("oracle judgment: %w", err)
	}

	if _, err := f.gateway.ResolveMarket(ctx, marketID, res.AIWasRight); err != nil {
		return res.AIWasRight, err
	}

	if f.bus != nil {
		verdict := "wrong"
		if res.AIWasRight {
			verdict = "right"
		}
		f.bus.Info(fmt.Sprintf("Market %s resolved: the AI was %s", marketID, verdict))
	}
	return res.AIWasRight, nil
}

// stage runs one workflow step, recording timing and reporting the result.
func (f *Flow) stage(stage Stage, fn func() error) error {
	start := time.Now()
	err := fn()

	result := &StageResult{
		Stage:     stage,
		Success:   err == nil,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	}
	if err != nil {
		result.Error = err.Error()
		f.metrics.RecordStageFailure(string(stage))
	}
	f.metrics.RecordStage(string(stage), result.Duration.Seconds())

	if f.onStageComplete != nil {
		f.onStageComplete(result)
	}
	return err
}

// amountRage converts base units to whole tokens for metrics.
func amountRage(units *big.Int) float64 {
	if units == nil {
		return 0
	}
	return metrics.DecimalToFloat64(decimal.NewFromBigInt(units, -token.Decimals))
}
