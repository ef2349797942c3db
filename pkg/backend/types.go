package backend

// Event is a scheduled match as returned by the schedule and lookup routes.
type Event struct {
	ID        string `json:"idEvent"`
	Name      string `json:"strEvent"`
	League    string `json:"strLeague"`
	LeagueID  string `json:"idLeague"`
	HomeTeam  string `json:"strHomeTeam"`
	AwayTeam  string `json:"strAwayTeam"`
	HomeScore string `json:"intHomeScore"`
	AwayScore string `json:"intAwayScore"`
	Date      string `json:"dateEvent"`
	Time      string `json:"strTime"`
	Venue     string `json:"strVenue"`
	Status    string `json:"strStatus"`
	Thumb     string `json:"strThumb"`
}

// League is the league lookup payload.
type League struct {
	ID          string `json:"idLeague"`
	Name        string `json:"strLeague"`
	Sport       string `json:"strSport"`
	Country     string `json:"strCountry"`
	Description string `json:"strDescriptionEN"`
	Badge       string `json:"strBadge"`
}

// Team is a team search result.
type Team struct {
	ID      string `json:"idTeam"`
	Name    string `json:"strTeam"`
	League  string `json:"strLeague"`
	Stadium string `json:"strStadium"`
	Badge   string `json:"strBadge"`
}

// Player is a player search result.
type Player struct {
	ID       string `json:"idPlayer"`
	Name     string `json:"strPlayer"`
	Team     string `json:"strTeam"`
	Position string `json:"strPosition"`
	Thumb    string `json:"strThumb"`
}

// Venue is a venue search result.
type Venue struct {
	ID       string `json:"idVenue"`
	Name     string `json:"strVenue"`
	Location string `json:"strLocation"`
	Capacity string `json:"intCapacity"`
}

// Prediction is the AI's call on a match, including the roast aimed at the
// losing side's fans.
type Prediction struct {
	MatchID      string  `json:"match_id"`
	HomeTeam     string  `json:"home_team"`
	AwayTeam     string  `json:"away_team"`
	League       string  `json:"league"`
	AIPrediction string  `json:"ai_prediction"`
	AIRoastLoser string  `json:"ai_roast_loser"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
	IPFSHash     string  `json:"ipfs_hash"`
	CreatedAt    string  `json:"created_at"`
}

// NFTMetadataRequest asks the backend to build bet-receipt NFT metadata.
type NFTMetadataRequest struct {
	MatchID     string `json:"match_id"`
	UserChoice  string `json:"user_choice"`
	AIRoast     string `json:"ai_roast"`
	UserAddress string `json:"user_address"`
}

// Attribute is an OpenSea-style metadata trait.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// NFTMetadata is the generated bet-receipt metadata. IPFSHash is lifted from
// the response envelope, not part of the metadata object itself.
type NFTMetadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
	MatchID     string      `json:"match_id"`
	UserChoice  string      `json:"user_choice"`
	AIRoast     string      `json:"ai_roast"`
	CreatedAt   string      `json:"created_at"`
	IPFSHash    string      `json:"ipfs_hash,omitempty"`
}

// RoastVote records a community vote on a roast.
type RoastVote struct {
	MatchID      string `json:"match_id"`
	RoastID      string `json:"roast_id"`
	VoterAddress string `json:"voter_address"`
	VoteWeight   int    `json:"vote_weight"`
	Timestamp    string `json:"timestamp"`
}

// LeaderboardEntry is one row of the roast leaderboard.
type LeaderboardEntry struct {
	RoastID string `json:"roast_id"`
	MatchID string `json:"match_id"`
	Roast   string `json:"roast"`
	Votes   int    `json:"votes"`
	Rank    int    `json:"rank"`
}

// ResolveRequest asks the oracle to judge a market against the final score.
type ResolveRequest struct {
	MarketID  int64  `json:"market_id"`
	MatchID   string `json:"match_id"`
	HomeScore *int   `json:"home_score"`
	AwayScore *int   `json:"away_score"`
	Status    string `json:"status"`
}

// Resolution is the oracle's judgment for a finished match.
type Resolution struct {
	MarketID   int64  `json:"market_id"`
	MatchID    string `json:"match_id"`
	AIWasRight bool   `json:"ai_was_right"`
	HomeScore  *int   `json:"home_score"`
	AwayScore  *int   `json:"away_score"`
	Status     string `json:"status"`
}

// Health is the backend health payload.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
