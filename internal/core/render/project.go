// Package render derives the dashboard's display model from view state.
package render

import (
	"time"

	"github.com/seckatie/urlhealth/internal/core/remote"
	"github.com/seckatie/urlhealth/internal/core/view"
)

// Header texts per result source.
const (
	HeaderDatabase  = "URLs from Database"
	HeaderSearchBar = "URLs from Search Bar"
)

// Button and link labels.
const (
	LabelCheck          = "Check URLs"
	LabelChecking       = "Checking..."
	LabelFetchAll       = "Check Database"
	LabelFetchingAll    = "Loading..."
	LabelViewHistory    = "View History"
	LabelLoadingHistory = "Loading..."
)

// Options controls locale, time zone and logo locations.
type Options struct {
	Locale   Locale
	Location *time.Location
	// LogoURL maps a hostname to the primary logo location. Nil uses the
	// third-party provider.
	LogoURL func(host string) string
}

// DisplayModel is everything a surface needs to draw the dashboard.
type DisplayModel struct {
	InputText string `json:"input_text"`
	Error     string `json:"error,omitempty"`
	Header    string `json:"header"`

	CheckButton    Button `json:"check_button"`
	FetchAllButton Button `json:"fetch_all_button"`

	Rows    []Row         `json:"rows"`
	History *HistoryPanel `json:"history,omitempty"`
}

// Button is an action button.
type Button struct {
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
}

// Badge is a status label with a style class.
type Badge struct {
	Label string `json:"label"`
	Class string `json:"class"`
}

// Row is one line of the results table.
type Row struct {
	ID           remote.URLID `json:"url_id"`
	URL          string       `json:"url"`
	Logo         Resource     `json:"logo"`
	Status       Badge        `json:"status"`
	ResponseTime string       `json:"response_time"`
	Uptime       string       `json:"uptime"`
	Date         string       `json:"date"`
	Time         string       `json:"time"`
	Warning      string       `json:"warning,omitempty"`

	HistoryLabel   string `json:"history_label"`
	HistoryLoading bool   `json:"history_loading"`
	Selected       bool   `json:"selected"`
}

// HistoryPanel is the drill-down table of the selected URL.
type HistoryPanel struct {
	ID      remote.URLID `json:"url_id"`
	URL     string       `json:"url,omitempty"`
	Logo    Resource     `json:"logo"`
	Entries []HistoryRow `json:"entries"`
}

// HistoryRow is one past check.
type HistoryRow struct {
	Status       Badge  `json:"status"`
	ResponseTime string `json:"response_time"`
	Timestamp    string `json:"timestamp"`
}

// BadgeFor returns the badge of a status.
func BadgeFor(status remote.Status) Badge {
	if status == remote.StatusUp {
		return Badge{Label: string(status), Class: "badge-up"}
	}
	return Badge{Label: string(status), Class: "badge-down"}
}

// HeaderFor returns the results header for a source.
func HeaderFor(src view.ResultSource) string {
	switch src {
	case view.SourceDatabase:
		return HeaderDatabase
	case view.SourceSearchBar:
		return HeaderSearchBar
	default:
		return ""
	}
}

// Project computes the display model. It has no side effects.
func Project(s view.State, d view.Drilldown, opts Options) DisplayModel {
	if opts.Locale.DateLayout == "" {
		opts.Locale = DefaultLocale()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	m := DisplayModel{
		InputText: s.InputText,
		Error:     s.ErrorMessage,
		Header:    HeaderFor(s.ResultSource),
		CheckButton: Button{
			Label:    LabelCheck,
			Disabled: s.Loading(),
		},
		FetchAllButton: Button{
			Label:    LabelFetchAll,
			Disabled: s.Loading(),
		},
		Rows: make([]Row, 0, len(s.Results)),
	}
	if s.LoadingCheck {
		m.CheckButton.Label = LabelChecking
	}
	if s.LoadingFetchAll {
		m.FetchAllButton.Label = LabelFetchingAll
	}

	pending, hasPending := d.Pending()
	selected, hasSelected := s.Selected()

	for _, r := range s.Results {
		checked := r.LastChecked.In(opts.Location)
		row := Row{
			ID:           r.URLID,
			URL:          r.URL,
			Logo:         LogoFor(r.URL, opts.LogoURL),
			Status:       BadgeFor(r.Status),
			ResponseTime: FormatResponseTime(r.ResponseTime),
			Uptime:       FormatUptime(r.UptimePercentage),
			Date:         opts.Locale.Date(checked),
			Time:         opts.Locale.Time(checked),
			Warning:      r.Warning,
			HistoryLabel: LabelViewHistory,
			Selected:     hasSelected && selected == r.URLID,
		}
		if hasPending && pending == r.URLID {
			row.HistoryLabel = LabelLoadingHistory
			row.HistoryLoading = true
		}
		m.Rows = append(m.Rows, row)
	}

	if len(s.History) > 0 && hasSelected {
		m.History = projectHistory(s, selected, opts)
	}
	return m
}

func projectHistory(s view.State, id remote.URLID, opts Options) *HistoryPanel {
	p := &HistoryPanel{
		ID:      id,
		Logo:    LogoFor("", nil),
		Entries: make([]HistoryRow, 0, len(s.History)),
	}
	if r, ok := s.SelectedResult(); ok && r.URL != "" {
		p.URL = r.URL
		p.Logo = LogoFor(r.URL, opts.LogoURL)
	}
	for _, h := range s.History {
		rt := "n/a"
		if h.ResponseTime != nil {
			rt = FormatResponseTime(*h.ResponseTime)
		}
		p.Entries = append(p.Entries, HistoryRow{
			Status:       BadgeFor(h.Status),
			ResponseTime: rt,
			Timestamp:    opts.Locale.DateTime(h.Timestamp.In(opts.Location)),
		})
	}
	return p
}
