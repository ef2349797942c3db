package betflow

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/ragebet/ragebet-go/core"
	"github.com/ragebet/ragebet-go/pkg/backend"
	"github.com/ragebet/ragebet-go/pkg/eth"
	"github.com/ragebet/ragebet-go/pkg/metrics"
	"github.com/ragebet/ragebet-go/pkg/token"
	"github.com/ragebet/ragebet-go/pkg/wallet"
)

// fakeGateway is a scriptable Gateway that logs call order.
type fakeGateway struct {
	mu    sync.Mutex
	calls []string

	market    *core.Market
	marketErr error

	balance   *big.Int
	allowance *big.Int

	approveErr    error
	approvedGrant *big.Int

	estimateErr error

	placeBetErr error
	placeBlock  chan struct{} // when set, PlaceBet waits for it

	resolveErr error
	resolved   *bool
}

func (g *fakeGateway) log(name string) {
	g.mu.Lock()
	g.calls = append(g.calls, name)
	g.mu.Unlock()
}

func (g *fakeGateway) callLog() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string{}, g.calls...)
}

func (g *fakeGateway) GetMarket(ctx context.Context, marketID *big.Int) (*core.Market, error) {
	g.log("getMarket")
	return g.market, g.marketErr
}

func (g *fakeGateway) GetTokenBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	g.log("balanceOf")
	if g.balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(g.balance), nil
}

func (g *fakeGateway) GetAllowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	g.log("allowance")
	if g.allowance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(g.allowance), nil
}

func (g *fakeGateway) Approve(ctx context.Context, amount *big.Int) (*gethtypes.Receipt, error) {
	g.log("approve")
	if g.approveErr != nil {
		return nil, g.approveErr
	}
	g.approvedGrant = new(big.Int).Set(amount)
	return &gethtypes.Receipt{Status: gethtypes.ReceiptStatusSuccessful}, nil
}

func (g *fakeGateway) EstimatePlaceBet(ctx context.Context, marketID *big.Int, agreeWithAI bool, amount *big.Int) (uint64, error) {
	g.log("estimate")
	if g.estimateErr != nil {
		return 0, core.Classify(g.estimateErr)
	}
	return 21000, nil
}

func (g *fakeGateway) PlaceBet(ctx context.Context, marketID *big.Int, agreeWithAI bool, amount *big.Int) (*gethtypes.Receipt, error) {
	g.log("placeBet")
	if g.placeBlock != nil {
		<-g.placeBlock
	}
	if g.placeBetErr != nil {
		return nil, g.placeBetErr
	}
	return &gethtypes.Receipt{
		Status: gethtypes.ReceiptStatusSuccessful,
		TxHash: common.HexToHash("0xabc123"),
	}, nil
}

func (g *fakeGateway) ResolveMarket(ctx context.Context, marketID *big.Int, aiWasRight bool) (*gethtypes.Receipt, error) {
	g.log("resolveMarket")
	if g.resolveErr != nil {
		return nil, g.resolveErr
	}
	g.resolved = &aiWasRight
	return &gethtypes.Receipt{Status: gethtypes.ReceiptStatusSuccessful}, nil
}

func openMarket() *core.Market {
	return &core.Market{
		ID:                 big.NewInt(1),
		MatchID:            "134919",
		Team1:              "Arsenal",
		Team2:              "Chelsea",
		Prediction:         "Arsenal win 2-1",
		EndTime:            time.Now().Add(time.Hour),
		TotalAgreeStake:    big.NewInt(0),
		TotalDisagreeStake: big.NewInt(0),
	}
}

func rage(s string) *big.Int {
	v, err := token.Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func healthyGateway() *fakeGateway {
	return &fakeGateway{
		market:    openMarket(),
		balance:   rage("1000"),
		allowance: rage("1000"),
	}
}

func connectedSession(t *testing.T) *wallet.Session {
	t.Helper()
	w, err := eth.NewWallet("0x0000000000000000000000000000000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("NewWallet failed: %v", err)
	}
	s := wallet.NewSession(wallet.NewKeyProvider(w, big.NewInt(10143)))
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return s
}

func newTestFlow(t *testing.T, g Gateway, cfg Config) *Flow {
	t.Helper()
	return NewFlow(cfg, connectedSession(t), g, nil, nil, metrics.Default())
}

func request(amount string) BetRequest {
	return BetRequest{MarketID: big.NewInt(1), AgreeWithAI: true, Amount: amount}
}

func TestWalletGate(t *testing.T) {
	g := healthyGateway()
	w, _ := eth.NewWallet("0x0000000000000000000000000000000000000000000000000000000000000001")
	disconnected := wallet.NewSession(wallet.NewKeyProvider(w, big.NewInt(10143)))
	f := NewFlow(Config{}, disconnected, g, nil, nil, metrics.Default())

	_, err := f.PlaceBet(context.Background(), request("10"))
	if !errors.Is(err, core.ErrWalletUnavailable) {
		t.Fatalf("want ErrWalletUnavailable, got %v", err)
	}
	if len(g.callLog()) != 0 {
		t.Errorf("no contract call should happen before the wallet check: %v", g.callLog())
	}
}

func TestValidationGate(t *testing.T) {
	tests := []struct {
		name   string
		amount string
	}{
		{"empty", ""},
		{"zero", "0"},
		{"negative", "-5"},
		{"garbage", "ten"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := healthyGateway()
			f := newTestFlow(t, g, Config{})

			_, err := f.PlaceBet(context.Background(), request(tt.amount))
			if !core.IsValidation(err) {
				t.Fatalf("want validation error, got %v", err)
			}
			if len(g.callLog()) != 0 {
				t.Errorf("validation failure must not reach the chain: %v", g.callLog())
			}
		})
	}
}

func TestMarketResolvedAborts(t *testing.T) {
	g := healthyGateway()
	g.market.Resolved = true
	f := newTestFlow(t, g, Config{})

	_, err := f.PlaceBet(context.Background(), request("10"))
	if !errors.Is(err, core.ErrMarketResolved) {
		t.Fatalf("want ErrMarketResolved, got %v", err)
	}
}

func TestMarketClosedAborts(t *testing.T) {
	g := healthyGateway()
	g.market.EndTime = time.Now().Add(-time.Minute)
	f := newTestFlow(t, g, Config{})

	_, err := f.PlaceBet(context.Background(), request("10"))
	if !errors.Is(err, core.ErrMarketClosed) {
		t.Fatalf("want ErrMarketClosed, got %v", err)
	}
	for _, call := range g.callLog() {
		if call == "placeBet" || call == "approve" {
			t.Errorf("closed market must not transact: %v", g.callLog())
		}
	}
}

func TestInsufficientFundsAborts(t *testing.T) {
	g := healthyGateway()
	g.balance = rage("5")
	f := newTestFlow(t, g, Config{})

	_, err := f.PlaceBet(context.Background(), request("10"))
	if !errors.Is(err, core.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
	for _, call := range g.callLog() {
		if call == "placeBet" {
			t.Error("insufficient funds must not submit a bet")
		}
	}
}

func TestAllowanceSkippedWhenSufficient(t *testing.T) {
	g := healthyGateway()
	f := newTestFlow(t, g, Config{})

	receipt, err := f.PlaceBet(context.Background(), request("10"))
	if err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}
	if receipt.Approved {
		t.Error("sufficient allowance must not trigger an approval")
	}
	for _, call := range g.callLog() {
		if call == "approve" {
			t.Error("approve should be skipped")
		}
	}
}

func TestApprovalRunsBeforeBet(t *testing.T) {
	g := healthyGateway()
	g.allowance = big.NewInt(0)
	f := newTestFlow(t, g, Config{})

	receipt, err := f.PlaceBet(context.Background(), request("10"))
	if err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}
	if !receipt.Approved {
		t.Error("receipt should report the approval")
	}
	if g.approvedGrant.Cmp(rage("10")) != 0 {
		t.Errorf("exact mode should approve the stake, got %s", g.approvedGrant)
	}

	calls := g.callLog()
	approveAt, betAt := -1, -1
	for i, call := range calls {
		switch call {
		case "approve":
			approveAt = i
		case "placeBet":
			betAt = i
		}
	}
	if approveAt == -1 || betAt == -1 || approveAt > betAt {
		t.Errorf("approve must precede placeBet: %v", calls)
	}
}

func TestUnboundedApproval(t *testing.T) {
	g := healthyGateway()
	g.allowance = big.NewInt(0)
	f := newTestFlow(t, g, Config{UnboundedApproval: true})

	if _, err := f.PlaceBet(context.Background(), request("10")); err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}
	if g.approvedGrant.Cmp(token.MaxApproval) != 0 {
		t.Errorf("unbounded mode should approve the maximum, got %s", g.approvedGrant)
	}
}

func TestApprovalFailureAborts(t *testing.T) {
	g := healthyGateway()
	g.allowance = big.NewInt(0)
	g.approveErr = errors.New("user rejected the request")
	f := newTestFlow(t, g, Config{})

	_, err := f.PlaceBet(context.Background(), request("10"))
	if !errors.Is(err, core.ErrApprovalFailed) {
		t.Fatalf("want ErrApprovalFailed, got %v", err)
	}
	for _, call := range g.callLog() {
		if call == "placeBet" {
			t.Error("failed approval must not submit a bet")
		}
	}
}

func TestPreflightRevertAborts(t *testing.T) {
	g := healthyGateway()
	g.estimateErr = errors.New("execution reverted: Already placed a bet")
	f := newTestFlow(t, g, Config{})

	_, err := f.PlaceBet(context.Background(), request("10"))
	if !errors.Is(err, core.ErrDuplicateBet) {
		t.Fatalf("want ErrDuplicateBet, got %v", err)
	}
	for _, call := range g.callLog() {
		if call == "placeBet" {
			t.Error("failed preflight must not submit a bet")
		}
	}
}

func TestSuccessfulBet(t *testing.T) {
	g := healthyGateway()
	f := newTestFlow(t, g, Config{})

	var stages []Stage
	f.OnStageComplete(func(r *StageResult) { stages = append(stages, r.Stage) })

	receipt, err := f.PlaceBet(context.Background(), request("50"))
	if err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}
	if receipt.TxHash == "" {
		t.Error("receipt should carry the tx hash")
	}
	if receipt.Side != core.SideAgree {
		t.Errorf("wrong side: %s", receipt.Side)
	}
	if receipt.Amount.Cmp(rage("50")) != 0 {
		t.Errorf("wrong amount: %s", receipt.Amount)
	}
	if len(stages) != 9 {
		t.Errorf("expected all 9 stages to report, got %v", stages)
	}
	if f.CachedBalance() == nil {
		t.Error("refresh should cache the balance")
	}
}

func TestMetadataFailureStillSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "ipfs down", http.StatusInternalServerError)
	}))
	defer server.Close()

	g := healthyGateway()
	api := backend.NewClient(backend.WithBaseURL(server.URL), backend.WithRateLimit(1000, 100))
	f := NewFlow(Config{}, connectedSession(t), g, api, nil, metrics.Default())

	req := request("10")
	req.MatchID = "134919"
	req.AIRoast = "Chelsea fans, prepare the tissues."

	receipt, err := f.PlaceBet(context.Background(), req)
	if err != nil {
		t.Fatalf("metadata failure must not fail the bet: %v", err)
	}
	if receipt.MetadataErr == nil {
		t.Error("receipt should carry the metadata error")
	}
	if receipt.Metadata != nil {
		t.Error("no metadata expected on failure")
	}
}

func TestMetadataGenerated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":   true,
			"metadata":  backend.NFTMetadata{Name: "Rage Bet NFT - Arsenal vs Chelsea", MatchID: "134919"},
			"ipfs_hash": "QmTest",
		})
	}))
	defer server.Close()

	g := healthyGateway()
	api := backend.NewClient(backend.WithBaseURL(server.URL), backend.WithRateLimit(1000, 100))
	f := NewFlow(Config{}, connectedSession(t), g, api, nil, metrics.Default())

	req := request("10")
	req.MatchID = "134919"

	receipt, err := f.PlaceBet(context.Background(), req)
	if err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}
	if receipt.Metadata == nil || receipt.Metadata.IPFSHash != "QmTest" {
		t.Errorf("wrong metadata: %+v", receipt.Metadata)
	}
}

func TestInFlightGuard(t *testing.T) {
	g := healthyGateway()
	g.placeBlock = make(chan struct{})
	f := newTestFlow(t, g, Config{})

	done := make(chan error, 1)
	go func() {
		_, err := f.PlaceBet(context.Background(), request("10"))
		done <- err
	}()

	// Wait for the first run to reach the blocked submit stage.
	deadline := time.After(2 * time.Second)
	for !f.InFlight(big.NewInt(1)) {
		select {
		case <-deadline:
			t.Fatal("first bet never started")
		case <-time.After(time.Millisecond):
		}
	}
	for {
		calls := g.callLog()
		if len(calls) > 0 && calls[len(calls)-1] == "placeBet" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first bet never reached submit")
		case <-time.After(time.Millisecond):
		}
	}

	_, err := f.PlaceBet(context.Background(), request("10"))
	if !errors.Is(err, ErrInFlight) {
		t.Fatalf("want ErrInFlight, got %v", err)
	}

	close(g.placeBlock)
	if err := <-done; err != nil {
		t.Fatalf("first bet failed: %v", err)
	}

	// The guard clears once the flow finishes.
	if f.InFlight(big.NewInt(1)) {
		t.Error("in-flight guard should clear after completion")
	}
}

func TestResolveMarketTwoPhase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req backend.ResolveRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(backend.Resolution{
			MarketID:   req.MarketID,
			MatchID:    req.MatchID,
			AIWasRight: true,
			Status:     "Match Finished",
		})
	}))
	defer server.Close()

	g := healthyGateway()
	api := backend.NewClient(backend.WithBaseURL(server.URL), backend.WithRateLimit(1000, 100))
	f := NewFlow(Config{}, connectedSession(t), g, api, nil, metrics.Default())

	right, err := f.ResolveMarket(context.Background(), big.NewInt(1), "134919")
	if err != nil {
		t.Fatalf("ResolveMarket failed: %v", err)
	}
	if !right {
		t.Error("oracle said the AI was right")
	}
	if g.resolved == nil || !*g.resolved {
		t.Error("on-chain resolution should carry the oracle judgment")
	}
}
