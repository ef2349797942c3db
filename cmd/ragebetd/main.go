// ragebetd is the Rage Bet betting daemon. It watches upcoming fixtures,
// prefetches AI predictions, and places bets against the prediction market
// contract on behalf of the configured wallet.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ragebet/ragebet-go/core"
	"github.com/ragebet/ragebet-go/pkg/backend"
	"github.com/ragebet/ragebet-go/pkg/betflow"
	"github.com/ragebet/ragebet-go/pkg/chain"
	"github.com/ragebet/ragebet-go/pkg/eth"
	"github.com/ragebet/ragebet-go/pkg/metrics"
	"github.com/ragebet/ragebet-go/pkg/notify"
	"github.com/ragebet/ragebet-go/pkg/prefs"
	"github.com/ragebet/ragebet-go/pkg/sports"
	"github.com/ragebet/ragebet-go/pkg/streaming"
	"github.com/ragebet/ragebet-go/pkg/token"
	"github.com/ragebet/ragebet-go/pkg/wallet"
)

var (
	// Flags
	httpAddr     = flag.String("http", ":8080", "HTTP server address for the status API")
	privateKey   = flag.String("key", "", "Private key for signing (or RAGEBET_PRIVATE_KEY env)")
	rpcURL       = flag.String("rpc", "https://testnet-rpc.monad.xyz", "Ethereum RPC endpoint (or RAGEBET_RPC_URL env)")
	apiURL       = flag.String("api", "", "Rage Bet backend URL (or RAGEBET_API_URL env)")
	chainID      = flag.Int64("chain-id", 10143, "Chain ID (10143 = Monad Testnet)")
	leagueID     = flag.String("league", "4328", "League to track (4328 = English Premier League)")
	tokenAddr    = flag.String("token", "", "RAGE token address (or RAGEBET_TOKEN_ADDRESS env)")
	marketAddr   = flag.String("market", "", "Prediction market address (or RAGEBET_MARKET_ADDRESS env)")
	nftAddr      = flag.String("nft", "", "Bet-receipt NFT address (or RAGEBET_NFT_ADDRESS env)")
	prefsPath    = flag.String("prefs", "ragebet-prefs.json", "Preferences file path")
	unboundedOK  = flag.Bool("unbounded-approve", false, "Approve the maximum allowance once instead of per bet")
	prefetchGap  = flag.Duration("prefetch-gap", 500*time.Millisecond, "Delay between AI prediction fetches")
	verbose      = flag.Bool("verbose", false, "Verbose logging")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("Starting Rage Bet daemon")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	d, err := newDaemon(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize daemon: %v", err)
	}

	d.flow.OnStageComplete(func(result *betflow.StageResult) {
		if *verbose || !result.Success {
			log.Printf("[%s] %s (%.2fms)", result.Stage, statusStr(result.Success), float64(result.Duration.Microseconds())/1000)
			if result.Error != "" {
				log.Printf("  Error: %s", result.Error)
			}
		}
	})

	go d.hub.Run()
	go d.hub.Bridge(ctx, d.bus)
	go d.startHTTP()
	go d.prefetchPredictions(ctx)

	log.Printf("Daemon running (account=%s, chain=%d, http=%s)", d.signer.AddressHex(), *chainID, *httpAddr)
	log.Printf("WebSocket streaming available at ws://%s/ws", *httpAddr)
	log.Println("Press Ctrl+C to stop")

	<-sigCh
	log.Println("Shutting down...")

	d.session.Disconnect()
	cancel()

	log.Println("Goodbye!")
}

type daemon struct {
	signer  *eth.Wallet
	session *wallet.Session
	gateway *chain.Gateway
	api     *backend.Client
	index   *sports.Index
	store   *prefs.Store
	bus     *notify.Bus
	hub     *streaming.Hub
	metrics *metrics.BettingMetrics
	flow    *betflow.Flow
}

func newDaemon(ctx context.Context) (*daemon, error) {
	d := &daemon{
		bus:     notify.NewBus(64),
		hub:     streaming.NewHub(),
		metrics: metrics.NewBettingMetrics(),
	}

	// Signer
	key := envOr(*privateKey, "RAGEBET_PRIVATE_KEY")
	if key == "" {
		log.Println("No private key provided - running in read-only mode")
		key = "0x0000000000000000000000000000000000000000000000000000000000000001"
	}
	signer, err := eth.NewWallet(key)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}
	d.signer = signer
	log.Printf("Signer initialized (address: %s)", signer.AddressHex())

	// Chain backend
	rpc := envOr(*rpcURL, "RAGEBET_RPC_URL")
	ec, err := ethclient.DialContext(ctx, rpc)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC %s: %w", rpc, err)
	}

	d.gateway = chain.New(ec, signer, chain.Config{
		TokenAddress:  envOr(*tokenAddr, "RAGEBET_TOKEN_ADDRESS"),
		MarketAddress: envOr(*marketAddr, "RAGEBET_MARKET_ADDRESS"),
		NFTAddress:    envOr(*nftAddr, "RAGEBET_NFT_ADDRESS"),
		ChainID:       big.NewInt(*chainID),
	})
	if !d.gateway.Configured() {
		log.Println("Warning: contract addresses incomplete - on-chain writes disabled")
	}

	// Wallet session over the key provider
	d.session = wallet.NewSession(wallet.NewKeyProvider(signer, big.NewInt(*chainID)))
	if err := d.session.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to open wallet session: %w", err)
	}
	d.session.OnReset(func(id *big.Int) {
		log.Printf("Chain changed to %s - contract handles reset", id)
		d.bus.Warning("Network changed. Contract state reloaded.")
	})

	// Backend API
	opts := []backend.ClientOption{}
	if api := envOr(*apiURL, "RAGEBET_API_URL"); api != "" {
		opts = append(opts, backend.WithBaseURL(api))
	}
	d.api = backend.NewClient(opts...)

	if _, err := d.api.Health(ctx); err != nil {
		log.Printf("Warning: backend unreachable: %v", err)
	}

	// Sports index and preferences
	d.index = sports.NewIndex(d.api)
	d.store, err = prefs.Open(*prefsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open preferences: %w", err)
	}
	if favorites := d.store.FavoriteTeams(); len(favorites) > 0 {
		go func() {
			if err := d.index.EnsureLoaded(ctx, favorites...); err != nil {
				log.Printf("Warning: team index load failed: %v", err)
			}
		}()
	}

	// Bet flow
	d.flow = betflow.NewFlow(
		betflow.Config{UnboundedApproval: *unboundedOK},
		d.session,
		d.gateway,
		d.api,
		d.bus,
		d.metrics,
	)

	return d, nil
}

// prefetchPredictions warms the prediction cache for upcoming fixtures with
// staggered fetches. One failed match never blocks the rest.
func (d *daemon) prefetchPredictions(ctx context.Context) {
	events, err := d.api.NextLeagueEvents(ctx, *leagueID)
	if err != nil {
		log.Printf("[PREFETCH] Schedule fetch failed: %v", err)
		return
	}
	sports.UpcomingFirst(events)

	if favorites := d.store.FavoriteTeams(); len(favorites) > 0 {
		if picked := sports.FilterEvents(events, favorites); len(picked) > 0 {
			events = picked
		}
	}

	matchIDs := make([]string, 0, len(events))
	for _, ev := range events {
		matchIDs = append(matchIDs, ev.ID)
	}
	log.Printf("[PREFETCH] Warming predictions for %d matches", len(matchIDs))

	p := backend.NewPrefetcher(d.api, *prefetchGap, func(r backend.PredictionResult) {
		if r.Err != nil {
			d.metrics.RecordPrediction("failed", 0)
			log.Printf("[PREFETCH] Match %s failed: %v", r.MatchID, r.Err)
			return
		}
		d.metrics.RecordPrediction("success", 0)
		d.hub.BroadcastPrediction(r.Prediction)
		if *verbose {
			log.Printf("[PREFETCH] Match %s: %s (%.0f%%)", r.MatchID, r.Prediction.AIPrediction, r.Prediction.Confidence*100)
		}
	})
	p.Fetch(ctx, matchIDs)
	log.Println("[PREFETCH] Done")
}

func (d *daemon) startHTTP() {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"connected": d.session.Connected(),
			"account":   d.session.Account().Hex(),
			"chain_id":  d.session.ChainID(),
		})
	})

	mux.HandleFunc("/markets", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var req struct {
				MatchID       string `json:"match_id"`
				Team1         string `json:"team1"`
				Team2         string `json:"team2"`
				TrashTalk     string `json:"trash_talk"`
				Prediction    string `json:"prediction"`
				DurationHours int64  `json:"duration_hours"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if req.MatchID == "" || req.Team1 == "" || req.Team2 == "" {
				http.Error(w, "match_id, team1 and team2 are required", http.StatusBadRequest)
				return
			}
			if req.DurationHours <= 0 {
				req.DurationHours = 24
			}
			receipt, err := d.gateway.CreateMarket(r.Context(), req.MatchID, req.Team1, req.Team2,
				req.TrashTalk, req.Prediction, time.Duration(req.DurationHours)*time.Hour)
			if err != nil {
				writeError(w, err)
				return
			}
			d.hub.BroadcastMarket(map[string]string{
				"match_id": req.MatchID,
				"teams":    fmt.Sprintf("%s vs %s", req.Team1, req.Team2),
				"tx_hash":  receipt.TxHash.Hex(),
			})
			writeJSON(w, map[string]string{"tx_hash": receipt.TxHash.Hex()})
			return
		}

		count, err := d.gateway.MarketCount(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		summaries := make([]map[string]interface{}, 0, count)
		for i := int64(0); i < count; i++ {
			m, err := d.gateway.GetMarket(r.Context(), big.NewInt(i))
			if err != nil || m == nil {
				continue
			}
			summaries = append(summaries, map[string]interface{}{
				"id":          m.ID.String(),
				"match_id":    m.MatchID,
				"teams":       fmt.Sprintf("%s vs %s", m.Team1, m.Team2),
				"prediction":  m.Prediction,
				"trash_talk":  m.TrashTalk,
				"end_time":    m.EndTime,
				"resolved":    m.Resolved,
				"open":        m.Open(time.Now()),
				"total_stake": token.Format(m.TotalStake()),
			})
		}
		writeJSON(w, summaries)
	})

	mux.HandleFunc("/schedule", func(w http.ResponseWriter, r *http.Request) {
		events, err := d.api.NextLeagueEvents(r.Context(), *leagueID)
		if err != nil {
			writeError(w, err)
			return
		}
		sports.UpcomingFirst(events)
		writeJSON(w, events)
	})

	mux.HandleFunc("/predictions/", func(w http.ResponseWriter, r *http.Request) {
		matchID := strings.TrimPrefix(r.URL.Path, "/predictions/")
		pred, err := d.api.GetPrediction(r.Context(), matchID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, pred)
	})

	mux.HandleFunc("/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		entries, err := d.api.RoastLeaderboard(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, entries)
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := d.gateway.GetUserStats(r.Context(), d.session.Account())
		if err != nil {
			writeError(w, err)
			return
		}
		if stats == nil {
			writeJSON(w, map[string]string{"error": "contracts not configured"})
			return
		}
		writeJSON(w, map[string]interface{}{
			"correct_bets":     stats.CorrectBets,
			"total_bets":       stats.TotalBets,
			"winnings":         token.Format(stats.Winnings),
			"accuracy":         stats.Accuracy,
			"in_hall_of_fame":  stats.InHallOfFame,
			"in_hall_of_shame": stats.InHallOfShame,
		})
	})

	mux.HandleFunc("/nfts", func(w http.ResponseWriter, r *http.Request) {
		nfts, err := d.gateway.GetUserNFTs(r.Context(), d.session.Account())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, nfts)
	})

	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if strings.TrimSpace(query) == "" {
			writeJSON(w, map[string]interface{}{"recent": d.store.RecentSearches()})
			return
		}

		if err := d.store.AddSearch(query); err != nil {
			log.Printf("Failed to record search: %v", err)
		}

		// Exact hits come from the local index without a backend round trip.
		if team, ok := d.index.FindTeamByName(query); ok {
			writeJSON(w, []backend.Team{*team})
			return
		}

		teams, err := d.api.SearchTeams(r.Context(), query)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, teams)
	})

	mux.HandleFunc("/favorites", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var req struct {
				Team string `json:"team"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			on, err := d.store.ToggleFavorite(req.Team)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, map[string]interface{}{"team": req.Team, "favorite": on})
			return
		}
		writeJSON(w, d.store.FavoriteTeams())
	})

	mux.HandleFunc("/bets", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			MarketID    int64  `json:"market_id"`
			AgreeWithAI bool   `json:"agree_with_ai"`
			Amount      string `json:"amount"`
			MatchID     string `json:"match_id"`
			AIRoast     string `json:"ai_roast"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		receipt, err := d.flow.PlaceBet(r.Context(), betflow.BetRequest{
			MarketID:    big.NewInt(req.MarketID),
			AgreeWithAI: req.AgreeWithAI,
			Amount:      req.Amount,
			MatchID:     req.MatchID,
			AIRoast:     req.AIRoast,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		d.hub.BroadcastBet(fmt.Sprintf("%d", req.MarketID), string(receipt.Side), token.Format(receipt.Amount), receipt.TxHash)
		writeJSON(w, map[string]interface{}{
			"tx_hash":      receipt.TxHash,
			"side":         receipt.Side,
			"amount":       token.Format(receipt.Amount),
			"approved":     receipt.Approved,
			"metadata_ok":  receipt.MetadataErr == nil,
		})
	})

	mux.HandleFunc("/claim", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			MarketID int64 `json:"market_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		receipt, err := d.gateway.ClaimWinnings(r.Context(), big.NewInt(req.MarketID))
		if err != nil {
			writeError(w, err)
			return
		}
		d.bus.Success("Winnings claimed. Enjoy the spoils.")
		writeJSON(w, map[string]string{"tx_hash": receipt.TxHash.Hex()})
	})

	mux.HandleFunc("/vote", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var vote backend.RoastVote
		if err := json.NewDecoder(r.Body).Decode(&vote); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if vote.VoterAddress == "" {
			vote.VoterAddress = d.session.Account().Hex()
		}
		if vote.VoteWeight == 0 {
			vote.VoteWeight = 1
		}
		if vote.Timestamp == "" {
			vote.Timestamp = time.Now().UTC().Format(time.RFC3339)
		}
		if err := d.api.VoteRoast(r.Context(), vote); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "recorded"})
	})

	mux.HandleFunc("/resolve", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			MarketID int64  `json:"market_id"`
			MatchID  string `json:"match_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		right, err := d.flow.ResolveMarket(r.Context(), big.NewInt(req.MarketID), req.MatchID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]interface{}{"market_id": req.MarketID, "ai_was_right": right})
	})

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.HandlerFor(d.metrics.Registry(), promhttp.HandlerOpts{}))

	// WebSocket streaming endpoint
	mux.HandleFunc("/ws", d.hub.ServeWS)

	server := &http.Server{
		Addr:         *httpAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second, // bet submission waits for confirmation
	}

	log.Printf("HTTP server listening on %s", *httpAddr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Printf("HTTP server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	json.NewEncoder(w).Encode(map[string]string{
		"error":   err.Error(),
		"message": core.UserMessage(err),
	})
}

func statusFor(err error) int {
	switch {
	case core.IsValidation(err):
		return http.StatusBadRequest
	case isAny(err, core.ErrMarketClosed, core.ErrMarketResolved, core.ErrDuplicateBet, betflow.ErrInFlight):
		return http.StatusConflict
	case isAny(err, core.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case isAny(err, core.ErrBackendUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func isAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

func statusStr(success bool) string {
	if success {
		return "OK"
	}
	return "FAILED"
}

func envOr(flagVal, envKey string) string {
	if flagVal != "" {
		return flagVal
	}
	return os.Getenv(envKey)
}
