package view

import "github.com/seckatie/urlhealth/internal/core/remote"

// DrilldownPhase is the phase of the history drill-down.
type DrilldownPhase int

const (
	Collapsed DrilldownPhase = iota
	Loading
	Shown
)

func (p DrilldownPhase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Shown:
		return "shown"
	default:
		return "collapsed"
	}
}

// Drilldown is the "expand history for URL X" state machine:
//
//	Collapsed|Shown(*) --request(id)--> Loading(id)
//	Loading(id)        --success-----> Shown(id)
//	Loading(id)        --failure-----> Shown(previous) or Collapsed
//	Shown(*)           --deselect----> Collapsed
//	Loading(id)        --deselect----> Loading(id) with no previous
//
// Deselect mirrors a fetch-all clearing the selected URL; otherwise shown
// history stays until another id is requested.
type Drilldown struct {
	Phase DrilldownPhase
	// ID is the loading id in Loading and the shown id in Shown.
	ID remote.URLID
	// previous is the id that was shown before the current request.
	previous    remote.URLID
	hasPrevious bool
}

// Request starts loading history for id.
func (d Drilldown) Request(id remote.URLID) Drilldown {
	next := Drilldown{Phase: Loading, ID: id}
	switch d.Phase {
	case Shown:
		next.previous, next.hasPrevious = d.ID, true
	case Loading:
		// A request while loading keeps whatever was shown before the first one.
		next.previous, next.hasPrevious = d.previous, d.hasPrevious
	}
	return next
}

// Succeed completes the pending request for id. Responses for any other id
// are ignored.
func (d Drilldown) Succeed(id remote.URLID) Drilldown {
	if d.Phase != Loading || d.ID != id {
		return d
	}
	return Drilldown{Phase: Shown, ID: id}
}

// Fail abandons the pending request for id, going back to what was shown.
func (d Drilldown) Fail(id remote.URLID) Drilldown {
	if d.Phase != Loading || d.ID != id {
		return d
	}
	if d.hasPrevious {
		return Drilldown{Phase: Shown, ID: d.previous}
	}
	return Drilldown{Phase: Collapsed}
}

// Pending returns the id being loaded, if any.
func (d Drilldown) Pending() (remote.URLID, bool) {
	if d.Phase != Loading {
		return "", false
	}
	return d.ID, true
}

// Deselect drops the shown id. A pending request stays pending but has
// nothing to fall back to if it fails.
func (d Drilldown) Deselect() Drilldown {
	if d.Phase == Loading {
		return Drilldown{Phase: Loading, ID: d.ID}
	}
	return Drilldown{Phase: Collapsed}
}
