// Package prefs persists lightweight user preferences: recent searches and
// favorite teams, stored as plain JSON with no versioning or migrations.
package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// MaxRecentSearches caps the search history length.
const MaxRecentSearches = 10

type state struct {
	RecentSearches []string `json:"recent_searches"`
	FavoriteTeams  []string `json:"favorite_teams"`
}

// Store is a file-backed preference store. It is safe for concurrent use.
type Store struct {
	path string

	mu sync.Mutex
	st state
}

// Open loads the store at path, creating an empty one when the file is
// missing. A corrupt file is treated as empty rather than an error.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read prefs: %w", err)
	}
	if err := json.Unmarshal(data, &s.st); err != nil {
		s.st = state{}
	}
	return s, nil
}

// RecentSearches returns the search history, most recent first.
func (s *Store) RecentSearches() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.st.RecentSearches...)
}

// AddSearch records a search query at the head of the history, deduplicating
// and trimming to the cap.
func (s *Store) AddSearch(query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := []string{query}
	for _, q := range s.st.RecentSearches {
		if !strings.EqualFold(q, query) {
			next = append(next, q)
		}
	}
	if len(next) > MaxRecentSearches {
		next = next[:MaxRecentSearches]
	}
	s.st.RecentSearches = next

	return s.save()
}

// ClearSearches empties the search history.
func (s *Store) ClearSearches() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.RecentSearches = nil
	return s.save()
}

// FavoriteTeams returns the favorites list.
func (s *Store) FavoriteTeams() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.st.FavoriteTeams...)
}

// IsFavorite reports whether a team is in the favorites list.
func (s *Store) IsFavorite(team string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.st.FavoriteTeams {
		if strings.EqualFold(f, team) {
			return true
		}
	}
	return false
}

// ToggleFavorite adds the team to favorites, or removes it when already
// present. It returns whether the team is a favorite afterwards.
func (s *Store) ToggleFavorite(team string) (bool, error) {
	team = strings.TrimSpace(team)
	if team == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, f := range s.st.FavoriteTeams {
		if strings.EqualFold(f, team) {
			s.st.FavoriteTeams = append(s.st.FavoriteTeams[:i], s.st.FavoriteTeams[i+1:]...)
			return false, s.save()
		}
	}
	s.st.FavoriteTeams = append(s.st.FavoriteTeams, team)
	return true, s.save()
}

// save writes the state atomically via a temp-file rename.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create prefs dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}
