package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ragebet/ragebet-go/core"
)

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("wrong path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Health{Status: "ok", Version: "1.2.0"})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	h, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if h.Status != "ok" {
		t.Errorf("wrong status: %s", h.Status)
	}
}

func TestNextLeagueEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/schedule/next-league/4328" {
			t.Errorf("wrong path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string][]Event{
			"events": {
				{ID: "134919", HomeTeam: "Arsenal", AwayTeam: "Chelsea", LeagueID: "4328"},
				{ID: "134920", HomeTeam: "Liverpool", AwayTeam: "Everton", LeagueID: "4328"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	events, err := client.NextLeagueEvents(context.Background(), "4328")
	if err != nil {
		t.Fatalf("NextLeagueEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].HomeTeam != "Arsenal" {
		t.Errorf("wrong home team: %s", events[0].HomeTeam)
	}
}

func TestSearchTeams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "arsenal" {
			t.Errorf("wrong query: %s", got)
		}
		json.NewEncoder(w).Encode(map[string][]Team{
			"teams": {{ID: "133604", Name: "Arsenal", League: "English Premier League"}},
		})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	teams, err := client.SearchTeams(context.Background(), "arsenal")
	if err != nil {
		t.Fatalf("SearchTeams failed: %v", err)
	}
	if len(teams) != 1 || teams[0].Name != "Arsenal" {
		t.Errorf("unexpected teams: %+v", teams)
	}
}

func TestGeneratePrediction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("wrong method: %s", r.Method)
		}
		if got := r.URL.Query().Get("match_id"); got != "134919" {
			t.Errorf("wrong match_id: %s", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"prediction": Prediction{
				MatchID:      "134919",
				HomeTeam:     "Arsenal",
				AwayTeam:     "Chelsea",
				AIPrediction: "Arsenal win 2-1",
				AIRoastLoser: "Chelsea fans, prepare the tissues.",
				Confidence:   0.78,
			},
			"message": "AI prediction and roasts generated successfully",
		})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	pred, err := client.GeneratePrediction(context.Background(), "134919")
	if err != nil {
		t.Fatalf("GeneratePrediction failed: %v", err)
	}
	if pred.AIPrediction != "Arsenal win 2-1" {
		t.Errorf("wrong prediction: %s", pred.AIPrediction)
	}
	if pred.Confidence != 0.78 {
		t.Errorf("wrong confidence: %f", pred.Confidence)
	}
}

func TestGeneratePredictionCacheHit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"prediction": Prediction{MatchID: "134919", AIPrediction: "Arsenal win 2-1"},
			"cached":     true,
		})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	pred, err := client.GeneratePrediction(context.Background(), "134919")
	if err != nil {
		t.Fatalf("GeneratePrediction failed: %v", err)
	}
	if pred.AIPrediction != "Arsenal win 2-1" {
		t.Errorf("wrong prediction: %s", pred.AIPrediction)
	}
}

func TestGetPredictionUnwrapsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ai/predictions/134919" {
			t.Errorf("wrong path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":    true,
			"prediction": Prediction{MatchID: "134919", AIPrediction: "Arsenal win 2-1", Confidence: 0.78},
		})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	pred, err := client.GetPrediction(context.Background(), "134919")
	if err != nil {
		t.Fatalf("GetPrediction failed: %v", err)
	}
	if pred.MatchID != "134919" || pred.Confidence != 0.78 {
		t.Errorf("fields lost in decode: %+v", pred)
	}
}

func TestPredictionMissingFromEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	if _, err := client.GetPrediction(context.Background(), "134919"); err == nil {
		t.Fatal("expected error for envelope without a prediction")
	}
}

func TestGenerateNFTMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req NFTMetadataRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.MatchID != "134919" || req.UserChoice != "agree" {
			t.Errorf("wrong request: %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"metadata": NFTMetadata{
				Name:    "Rage Bet NFT - Arsenal vs Chelsea",
				MatchID: "134919",
				Attributes: []Attribute{
					{TraitType: "User Choice", Value: "agree"},
				},
			},
			"ipfs_hash": "QmTest",
			"message":   "NFT metadata generated successfully",
		})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	meta, err := client.GenerateNFTMetadata(context.Background(), NFTMetadataRequest{
		MatchID:     "134919",
		UserChoice:  "agree",
		AIRoast:     "Chelsea fans, prepare the tissues.",
		UserAddress: "0x1111111111111111111111111111111111111111",
	})
	if err != nil {
		t.Fatalf("GenerateNFTMetadata failed: %v", err)
	}
	if meta.Name != "Rage Bet NFT - Arsenal vs Chelsea" {
		t.Errorf("wrong name: %s", meta.Name)
	}
	if meta.IPFSHash != "QmTest" {
		t.Errorf("ipfs hash not lifted from envelope: %q", meta.IPFSHash)
	}
}

func TestLookupLeagueUsesPathSegment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/lookup/league/4328" {
			t.Errorf("wrong path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(League{ID: "4328", Name: "English Premier League"})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	league, err := client.LookupLeague(context.Background(), "4328")
	if err != nil {
		t.Fatalf("LookupLeague failed: %v", err)
	}
	if league.Name != "English Premier League" {
		t.Errorf("wrong league: %+v", league)
	}
}

func TestLookupEventNullIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/lookup/event/999" {
			t.Errorf("wrong path: %s", r.URL.Path)
		}
		w.Write([]byte("null"))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	if _, err := client.LookupEvent(context.Background(), "999"); err == nil {
		t.Fatal("expected not-found error for null body")
	}
}

func TestVoteRoastBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		for _, field := range []string{"match_id", "roast_id", "voter_address", "vote_weight", "timestamp"} {
			if _, ok := got[field]; !ok {
				t.Errorf("missing field %q in vote body: %v", field, got)
			}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	err := client.VoteRoast(context.Background(), RoastVote{
		MatchID:      "134919",
		RoastID:      "roast_1",
		VoterAddress: "0x1111111111111111111111111111111111111111",
		VoteWeight:   1,
		Timestamp:    "2026-08-30T12:00:00Z",
	})
	if err != nil {
		t.Fatalf("VoteRoast failed: %v", err)
	}
}

func TestRoastLeaderboard(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"leaderboard": []LeaderboardEntry{
				{RoastID: "roast_1", MatchID: "134919", Roast: "Slower than dial-up.", Votes: 150, Rank: 1},
				{RoastID: "roast_2", MatchID: "134920", Roast: "A defense made of fog.", Votes: 120, Rank: 2},
			},
		})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	entries, err := client.RoastLeaderboard(context.Background())
	if err != nil {
		t.Fatalf("RoastLeaderboard failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Votes != 150 || entries[0].Rank != 1 {
		t.Errorf("vote counts lost in decode: %+v", entries[0])
	}
}

func TestResolveMarket(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ResolveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.MarketID != 7 || req.MatchID != "134919" {
			t.Errorf("wrong request: %+v", req)
		}
		home, away := 2, 1
		json.NewEncoder(w).Encode(Resolution{
			MarketID:   req.MarketID,
			MatchID:    req.MatchID,
			AIWasRight: true,
			HomeScore:  &home,
			AwayScore:  &away,
			Status:     "Match Finished",
		})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	res, err := client.ResolveMarket(context.Background(), ResolveRequest{
		MarketID: 7,
		MatchID:  "134919",
		Status:   "Unknown",
	})
	if err != nil {
		t.Fatalf("ResolveMarket failed: %v", err)
	}
	if !res.AIWasRight {
		t.Error("expected ai_was_right true")
	}
	if res.HomeScore == nil || *res.HomeScore != 2 {
		t.Errorf("wrong home score: %v", res.HomeScore)
	}
}

func TestServerErrorIsBackendUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.Health(context.Background())
	if !errors.Is(err, core.ErrBackendUnavailable) {
		t.Errorf("want ErrBackendUnavailable, got %v", err)
	}
}

func TestClientErrorIsNotBackendUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no prediction for match", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.GetPrediction(context.Background(), "nope")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, core.ErrBackendUnavailable) {
		t.Error("404 should not classify as backend unavailable")
	}
}

func TestUnreachableBackend(t *testing.T) {
	client := NewClient(WithBaseURL("http://127.0.0.1:1"))
	_, err := client.Health(context.Background())
	if !errors.Is(err, core.ErrBackendUnavailable) {
		t.Errorf("want ErrBackendUnavailable, got %v", err)
	}
}

func TestClientOptions(t *testing.T) {
	custom := &http.Client{}
	client := NewClient(
		WithBaseURL("https://custom.api.com"),
		WithHTTPClient(custom),
		WithRateLimit(100, 10),
	)
	if client.baseURL != "https://custom.api.com" {
		t.Errorf("wrong base url: %s", client.baseURL)
	}
	if client.httpClient != custom {
		t.Error("custom http client not applied")
	}
}
