// Package view holds the dashboard's view state and the transitions that
// change it.
//
// State is a plain value; Transition is a pure function from (State, Event)
// to State, so every mutation can be tested without a network. Store owns one
// State for a session, serializes transitions and notifies listeners.
// Dispatcher runs the three remote exchanges against a Store.
package view

import "github.com/seckatie/urlhealth/internal/core/remote"

// ResultSource records which action produced the displayed results.
type ResultSource int

const (
	SourceNone ResultSource = iota
	SourceDatabase
	SourceSearchBar
)

func (s ResultSource) String() string {
	switch s {
	case SourceDatabase:
		return "database"
	case SourceSearchBar:
		return "search_bar"
	default:
		return "none"
	}
}

// State is the complete dashboard state for one session.
type State struct {
	InputText string

	Results      []remote.URLCheckResult
	ResultSource ResultSource

	History       []remote.HistoryEntry
	SelectedURLID *remote.URLID

	LoadingCheck    bool
	LoadingFetchAll bool
	LoadingHistory  bool

	// ErrorMessage is empty when no banner is shown.
	ErrorMessage string
}

// Loading reports whether either top-level action is in flight.
func (s State) Loading() bool {
	return s.LoadingCheck || s.LoadingFetchAll
}

// Selected returns the selected URL id and whether one is set.
func (s State) Selected() (remote.URLID, bool) {
	if s.SelectedURLID == nil {
		return "", false
	}
	return *s.SelectedURLID, true
}

// SelectedResult returns the result row whose id is selected, if any.
func (s State) SelectedResult() (remote.URLCheckResult, bool) {
	id, ok := s.Selected()
	if !ok {
		return remote.URLCheckResult{}, false
	}
	for _, r := range s.Results {
		if r.URLID == id {
			return r, true
		}
	}
	return remote.URLCheckResult{}, false
}

// Clone returns a copy that shares no slices or pointers with s.
func (s State) Clone() State {
	out := s
	if s.Results != nil {
		out.Results = append([]remote.URLCheckResult(nil), s.Results...)
	}
	if s.History != nil {
		out.History = make([]remote.HistoryEntry, len(s.History))
		for i, h := range s.History {
			if h.ResponseTime != nil {
				v := *h.ResponseTime
				h.ResponseTime = &v
			}
			out.History[i] = h
		}
	}
	if s.SelectedURLID != nil {
		id := *s.SelectedURLID
		out.SelectedURLID = &id
	}
	return out
}
