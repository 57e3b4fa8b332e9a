package view

import "github.com/seckatie/urlhealth/internal/core/remote"

// Event is an input to Transition.
type Event interface {
	isEvent()
}

// InputChanged records what the user typed.
type InputChanged struct{ Text string }

// ErrorDismissed clears the error banner.
type ErrorDismissed struct{}

// FetchAllStarted is applied when "check database" is dispatched.
type FetchAllStarted struct{}

// FetchAllSucceeded carries the service's full listing.
type FetchAllSucceeded struct{ Results []remote.URLCheckResult }

// FetchAllFailed carries the message to show.
type FetchAllFailed struct{ Message string }

// CheckRejected is applied when the input fails validation; nothing is sent.
type CheckRejected struct{ Message string }

// CheckStarted is applied when a validated check is dispatched.
type CheckStarted struct{ URLs []string }

// CheckSucceeded carries the probe results.
type CheckSucceeded struct{ Results []remote.URLCheckResult }

// CheckFailed carries the message to show.
type CheckFailed struct{ Message string }

// HistoryStarted is applied when history for ID is requested.
type HistoryStarted struct{ ID remote.URLID }

// HistorySucceeded carries the history of ID.
type HistorySucceeded struct {
	ID      remote.URLID
	History []remote.HistoryEntry
}

// HistoryFailed carries the message to show.
type HistoryFailed struct {
	ID      remote.URLID
	Message string
}

// StaleResponse is applied instead of a success or failure event when the
// response belongs to a superseded request. It only clears the flag.
type StaleResponse struct{ Flag LoadingFlag }

// LoadingFlag names one of the three loading flags.
type LoadingFlag int

const (
	FlagFetchAll LoadingFlag = iota
	FlagCheck
	FlagHistory
)

func (InputChanged) isEvent() {}
func (ErrorDismissed) isEvent() {}
func (FetchAllStarted) isEvent() {}
func (FetchAllSucceeded) isEvent() {}
func (FetchAllFailed) isEvent() {}
func (CheckRejected) isEvent() {}
func (CheckStarted) isEvent() {}
func (CheckSucceeded) isEvent() {}
func (CheckFailed) isEvent() {}
func (HistoryStarted) isEvent() {}
func (HistorySucceeded) isEvent() {}
func (HistoryFailed) isEvent() {}
func (StaleResponse) isEvent() {}

// Transition returns the state that results from applying ev to s. It does not
// modify s. Events are applied unconditionally, so whichever response is
// applied last wins; Dispatcher is what filters out superseded responses.
func Transition(s State, ev Event) State {
	s = s.Clone()

	switch ev := ev.(type) {
	case InputChanged:
		s.InputText = ev.Text

	case ErrorDismissed:
		s.ErrorMessage = ""

	case FetchAllStarted:
		s.LoadingFetchAll = true
		s.ErrorMessage = ""
		s.SelectedURLID = nil
		s.ResultSource = SourceDatabase
	case FetchAllSucceeded:
		s.Results = copyResults(ev.Results)
		s.LoadingFetchAll = false
	case FetchAllFailed:
		s.ErrorMessage = ev.Message
		s.LoadingFetchAll = false

	case CheckRejected:
		s.ErrorMessage = ev.Message
	case CheckStarted:
		s.LoadingCheck = true
		s.ErrorMessage = ""
		s.ResultSource = SourceSearchBar
	case CheckSucceeded:
		s.Results = copyResults(ev.Results)
		s.LoadingCheck = false
	case CheckFailed:
		s.ErrorMessage = ev.Message
		s.LoadingCheck = false

	case HistoryStarted:
		s.LoadingHistory = true
		s.ErrorMessage = ""
	case HistorySucceeded:
		s.History = copyHistory(ev.History)
		id := ev.ID
		s.SelectedURLID = &id
		s.LoadingHistory = false
	case HistoryFailed:
		s.ErrorMessage = ev.Message
		s.LoadingHistory = false

	case StaleResponse:
		switch ev.Flag {
		case FlagFetchAll:
			s.LoadingFetchAll = false
		case FlagCheck:
			s.LoadingCheck = false
		case FlagHistory:
			s.LoadingHistory = false
		}
	}

	return s
}

// copyResults never returns nil so "replaced with an empty listing" stays
// distinguishable from "never loaded" in tests and JSON.
func copyResults(in []remote.URLCheckResult) []remote.URLCheckResult {
	return append(make([]remote.URLCheckResult, 0, len(in)), in...)
}

func copyHistory(in []remote.HistoryEntry) []remote.HistoryEntry {
	return State{History: append(make([]remote.HistoryEntry, 0, len(in)), in...)}.Clone().History
}
