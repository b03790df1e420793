package ui

import (
	"strings"

	"github.com/abdhe/carscout/pkg/carinfo"
)

// ViewState is everything the screen shows. It is a value: every transition
// returns a new state and never mutates the receiver.
type ViewState struct {
	Query       string
	Ratings     *carinfo.CarRatings
	Description string
	ProsCons    *carinfo.ProsCons
	Err         error

	LoadingRatings     bool
	LoadingDescription bool
	LoadingProsCons    bool

	// Search is bumped on every new search so late answers for an older
	// query can be recognised and dropped.
	Search int
}

// Loading reports whether any lookup is in flight.
func (s ViewState) Loading() bool {
	return s.LoadingRatings || s.LoadingDescription || s.LoadingProsCons
}

// CanSearch reports whether a new search may start.
func (s ViewState) CanSearch() bool { return !s.LoadingRatings }

// CanRequestDetails reports whether description and pros/cons may be asked
// for; they are only offered once ratings are shown.
func (s ViewState) CanRequestDetails() bool {
	return s.Ratings != nil && !s.LoadingRatings
}

// StartSearch clears previous results and starts a ratings lookup. A blank
// query sets ErrEmptyQuery instead; ok reports whether a lookup should run.
func (s ViewState) StartSearch(query string) (next ViewState, ok bool) {
	next = ViewState{Query: strings.TrimSpace(query), Search: s.Search + 1}
	if next.Query == "" {
		next.Err = carinfo.ErrEmptyQuery
		return next, false
	}
	next.LoadingRatings = true
	return next, true
}

// RatingsLoaded applies a ratings answer for search.
func (s ViewState) RatingsLoaded(search int, r *carinfo.CarRatings, err error) ViewState {
	if search != s.Search {
		return s
	}
	s.LoadingRatings = false
	if err != nil {
		s.Err = err
		return s
	}
	if r == nil || len(r.Ratings) == 0 {
		s.Err = carinfo.ErrNoRatings
		return s
	}
	s.Ratings = r
	return s
}

// StartDescription marks a description lookup as in flight.
func (s ViewState) StartDescription() (ViewState, bool) {
	if !s.CanRequestDetails() || s.LoadingDescription {
		return s, false
	}
	s.LoadingDescription = true
	s.Err = nil
	return s, true
}

// DescriptionLoaded applies a description answer for search.
func (s ViewState) DescriptionLoaded(search int, d string, err error) ViewState {
	if search != s.Search {
		return s
	}
	s.LoadingDescription = false
	if err != nil {
		s.Err = err
		return s
	}
	s.Description = d
	return s
}

// StartProsCons marks a pros/cons lookup as in flight.
func (s ViewState) StartProsCons() (ViewState, bool) {
	if !s.CanRequestDetails() || s.LoadingProsCons {
		return s, false
	}
	s.LoadingProsCons = true
	s.Err = nil
	return s, true
}

// ProsConsLoaded applies a pros/cons answer for search.
func (s ViewState) ProsConsLoaded(search int, pc *carinfo.ProsCons, err error) ViewState {
	if search != s.Search {
		return s
	}
	s.LoadingProsCons = false
	if err != nil {
		s.Err = err
		return s
	}
	s.ProsCons = pc
	return s
}
