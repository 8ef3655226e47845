package kp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/i474232898/kp-index-aggregation/internal/metrics"
)

// SearchStatus is the phase of the location search.
type SearchStatus string

const (
	SearchIdle    SearchStatus = "idle"
	SearchLoading SearchStatus = "loading"
	SearchResults SearchStatus = "results"
	SearchError   SearchStatus = "error"
)

// SearchState is what the location picker renders.
type SearchState struct {
	Status  SearchStatus `json:"status"`
	Query   string       `json:"query,omitempty"`
	Results []Location   `json:"results,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// LocationSearch runs geocoding queries where a newer query always
// supersedes an older one: the older request is cancelled and its response,
// if it still arrives, is discarded.
type LocationSearch struct {
	geocoder Geocoder

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	state  SearchState
}

// NewLocationSearch creates an idle search.
func NewLocationSearch(g Geocoder) *LocationSearch {
	return &LocationSearch{
		geocoder: g,
		state:    SearchState{Status: SearchIdle},
	}
}

// State returns the latest search state.
func (s *LocationSearch) State() SearchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Search runs query and returns the state it produced. A blank query resets
// to idle. If a newer query started meanwhile, the newer state is returned.
func (s *LocationSearch) Search(ctx context.Context, query string) SearchState {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.Clear()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.state = SearchState{Status: SearchLoading, Query: query}
	s.mu.Unlock()

	results, err := s.geocoder.Search(ctx, query)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		metrics.LocationSearches.WithLabelValues("superseded").Inc()
		return s.state
	}
	s.cancel = nil
	if err != nil {
		metrics.LocationSearches.WithLabelValues("error").Inc()
		s.state = SearchState{Status: SearchError, Query: query, Error: fmt.Sprintf("location search failed: %v", err)}
		return s.state
	}
	metrics.LocationSearches.WithLabelValues("ok").Inc()
	if results == nil {
		results = []Location{}
	}
	s.state = SearchState{Status: SearchResults, Query: query, Results: results}
	return s.state
}

// Clear cancels any in-flight query and returns to idle.
func (s *LocationSearch) Clear() SearchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.state = SearchState{Status: SearchIdle}
	return s.state
}
