// Package backend is the HTTP client for the Rage Bet API: sports schedule
// and search, AI prediction generation, NFT metadata, roast voting, and the
// oracle resolve route.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/ragebet/ragebet-go/core"
)

const (
	// DefaultBaseURL is the local development API address.
	DefaultBaseURL = "http://localhost:8000"

	defaultRateLimit = 10.0 // requests per second
	defaultBurst     = 5

	// Prediction generation runs an LLM round trip and needs more headroom
	// than regular routes.
	predictionTimeout = 45 * time.Second
)

// Client is a Rage Bet API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRateLimit sets custom rate limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a new Rage Bet API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Health checks backend availability.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.get(ctx, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// NextLeagueEvents fetches the upcoming fixtures for a league.
func (c *Client) NextLeagueEvents(ctx context.Context, leagueID string) ([]Event, error) {
	var resp struct {
		Events []Event `json:"events"`
	}
	if err := c.get(ctx, "/api/schedule/next-league/"+leagueID, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// EventsOnDate fetches all events on a YYYY-MM-DD date.
func (c *Client) EventsOnDate(ctx context.Context, date string) ([]Event, error) {
	var resp struct {
		Events []Event `json:"events"`
	}
	if err := c.get(ctx, "/api/events/date/"+date, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// LookupLeague fetches league details by ID. The route returns a single
// object, or a JSON null when the league does not exist.
func (c *Client) LookupLeague(ctx context.Context, leagueID string) (*League, error) {
	var lg *League
	if err := c.get(ctx, "/api/lookup/league/"+leagueID, nil, &lg); err != nil {
		return nil, err
	}
	if lg == nil {
		return nil, fmt.Errorf("league not found: %s", leagueID)
	}
	return lg, nil
}

// LookupEvent fetches a single event by ID.
func (c *Client) LookupEvent(ctx context.Context, eventID string) (*Event, error) {
	var ev *Event
	if err := c.get(ctx, "/api/lookup/event/"+eventID, nil, &ev); err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, fmt.Errorf("event not found: %s", eventID)
	}
	return ev, nil
}

// SearchTeams searches teams by name.
func (c *Client) SearchTeams(ctx context.Context, query string) ([]Team, error) {
	var resp struct {
		Teams []Team `json:"teams"`
	}
	if err := c.get(ctx, "/api/search/teams", url.Values{"q": {query}}, &resp); err != nil {
		return nil, err
	}
	return resp.Teams, nil
}

// SearchPlayers searches players by name.
func (c *Client) SearchPlayers(ctx context.Context, query string) ([]Player, error) {
	var resp struct {
		Players []Player `json:"player"`
	}
	if err := c.get(ctx, "/api/search/players", url.Values{"q": {query}}, &resp); err != nil {
		return nil, err
	}
	return resp.Players, nil
}

// SearchVenues searches venues by name.
func (c *Client) SearchVenues(ctx context.Context, query string) ([]Venue, error) {
	var resp struct {
		Venues []Venue `json:"venues"`
	}
	if err := c.get(ctx, "/api/search/venues", url.Values{"q": {query}}, &resp); err != nil {
		return nil, err
	}
	return resp.Venues, nil
}

// predictionEnvelope wraps prediction payloads. Fresh responses carry
// success+prediction, cache hits carry prediction+cached.
type predictionEnvelope struct {
	Prediction *Prediction `json:"prediction"`
	Cached     bool        `json:"cached"`
}

// GeneratePrediction asks the AI to call a match. Generation can take tens of
// seconds, so the call uses its own timeout rather than the client default.
func (c *Client) GeneratePrediction(ctx context.Context, matchID string) (*Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, predictionTimeout)
	defer cancel()

	var env predictionEnvelope
	params := url.Values{"match_id": {matchID}}
	if err := c.post(ctx, "/ai/generate-prediction?"+params.Encode(), nil, &env); err != nil {
		return nil, err
	}
	if env.Prediction == nil {
		return nil, fmt.Errorf("prediction missing from response for match %s", matchID)
	}
	return env.Prediction, nil
}

// GetPrediction fetches a previously generated prediction.
func (c *Client) GetPrediction(ctx context.Context, matchID string) (*Prediction, error) {
	var env predictionEnvelope
	if err := c.get(ctx, "/ai/predictions/"+matchID, nil, &env); err != nil {
		return nil, err
	}
	if env.Prediction == nil {
		return nil, fmt.Errorf("prediction missing from response for match %s", matchID)
	}
	return env.Prediction, nil
}

// GenerateNFTMetadata builds bet-receipt metadata for a placed bet. The IPFS
// hash rides next to the metadata object in the response and is lifted onto
// the returned value.
func (c *Client) GenerateNFTMetadata(ctx context.Context, req NFTMetadataRequest) (*NFTMetadata, error) {
	var env struct {
		Metadata *NFTMetadata `json:"metadata"`
		IPFSHash string       `json:"ipfs_hash"`
	}
	if err := c.post(ctx, "/nft/generate-metadata", req, &env); err != nil {
		return nil, err
	}
	if env.Metadata == nil {
		return nil, fmt.Errorf("metadata missing from response for match %s", req.MatchID)
	}
	env.Metadata.IPFSHash = env.IPFSHash
	return env.Metadata, nil
}

// VoteRoast records a community vote on a roast.
func (c *Client) VoteRoast(ctx context.Context, vote RoastVote) error {
	return c.post(ctx, "/community/vote-roast", vote, nil)
}

// RoastLeaderboard fetches the funniest roasts.
func (c *Client) RoastLeaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	var resp struct {
		Leaderboard []LeaderboardEntry `json:"leaderboard"`
	}
	if err := c.get(ctx, "/community/roast-leaderboard", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Leaderboard, nil
}

// ResolveMarket asks the oracle whether the AI called the match correctly.
// The returned judgment is what gets submitted on-chain.
func (c *Client) ResolveMarket(ctx context.Context, req ResolveRequest) (*Resolution, error) {
	var res Resolution
	if err := c.post(ctx, "/oracle/resolve-market", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// get performs a GET request with rate limiting.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req, result)
}

// post performs a POST request with a JSON body and rate limiting.
func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrBackendUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: api error %d: %s", core.ErrBackendUnavailable, resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api error %d: %s", resp.StatusCode, string(body))
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
