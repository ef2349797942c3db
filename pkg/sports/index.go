// Package sports maintains a local team index over the backend's sports data
// for fast name matching and event filtering.
package sports

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ragebet/ragebet-go/pkg/backend"
)

const indexCacheTTL = 24 * time.Hour

// Index caches team data fetched through the backend and supports normalized
// name lookup across accents and common suffixes.
type Index struct {
	client *backend.Client

	mu          sync.RWMutex
	teams       map[string]*backend.Team // ID -> team
	byName      map[string]*backend.Team // normalized name -> team
	lastRefresh time.Time
}

// NewIndex creates an empty index over the given backend client.
func NewIndex(client *backend.Client) *Index {
	return &Index{
		client: client,
		teams:  make(map[string]*backend.Team),
		byName: make(map[string]*backend.Team),
	}
}

// Load fetches teams matching the queries and rebuilds the lookup tables.
func (x *Index) Load(ctx context.Context, queries ...string) error {
	seen := make(map[string]backend.Team)
	for _, q := range queries {
		teams, err := x.client.SearchTeams(ctx, q)
		if err != nil {
			return fmt.Errorf("search teams %q: %w", q, err)
		}
		for _, t := range teams {
			seen[t.ID] = t
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.teams = make(map[string]*backend.Team)
	x.byName = make(map[string]*backend.Team)

	for id, t := range seen {
		team := t
		x.teams[id] = &team
		x.byName[NormalizeName(team.Name)] = &team
	}

	x.lastRefresh = time.Now()
	return nil
}

// EnsureLoaded reloads the index when empty or stale.
func (x *Index) EnsureLoaded(ctx context.Context, queries ...string) error {
	x.mu.RLock()
	needsRefresh := len(x.teams) == 0 || time.Since(x.lastRefresh) > indexCacheTTL
	x.mu.RUnlock()

	if needsRefresh {
		return x.Load(ctx, queries...)
	}
	return nil
}

// TeamCount returns the number of indexed teams.
func (x *Index) TeamCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.teams)
}

// GetTeam returns a team by ID.
func (x *Index) GetTeam(id string) (*backend.Team, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	team, ok := x.teams[id]
	return team, ok
}

// FindTeamByName finds a team by normalized name.
func (x *Index) FindTeamByName(name string) (*backend.Team, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	team, ok := x.byName[NormalizeName(name)]
	return team, ok
}

// FilterEvents returns the events involving any of the named teams. Matching
// is accent- and suffix-insensitive.
func FilterEvents(events []backend.Event, teamNames []string) []backend.Event {
	if len(teamNames) == 0 {
		return events
	}

	wanted := make(map[string]bool, len(teamNames))
	for _, name := range teamNames {
		wanted[NormalizeName(name)] = true
	}

	var out []backend.Event
	for _, ev := range events {
		if wanted[NormalizeName(ev.HomeTeam)] || wanted[NormalizeName(ev.AwayTeam)] {
			out = append(out, ev)
		}
	}
	return out
}

// UpcomingFirst sorts events in place by date then kickoff time, earliest
// first. Dates are the API's YYYY-MM-DD strings, so string order is
// chronological.
func UpcomingFirst(events []backend.Event) {
	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && eventBefore(events[j], events[j-1]); j-- {
			events[j], events[j-1] = events[j-1], events[j]
		}
	}
}

func eventBefore(a, b backend.Event) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	return a.Time < b.Time
}

// NormalizeName normalizes a team name for matching.
func NormalizeName(name string) string {
	name = strings.ToLower(name)

	// Remove accents
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	name, _, _ = transform.String(t, name)

	// Remove common suffixes
	name = strings.ReplaceAll(name, " fc", "")
	name = strings.ReplaceAll(name, " afc", "")

	// Normalize spaces
	name = strings.Join(strings.Fields(name), " ")

	return strings.TrimSpace(name)
}
