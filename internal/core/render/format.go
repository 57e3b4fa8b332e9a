package render

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

// FormatResponseTime renders seconds with exactly two fractional digits.
// Halves round away from zero on the shortest decimal form of v, so 1.005
// renders as "1.01s".
func FormatResponseTime(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + "s"
}

// FormatUptime renders a percentage with exactly one fractional digit, so
// 99.95 renders as "100.0%".
func FormatUptime(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(1) + "%"
}

// Locale holds the layouts used to render instants for one language.
type Locale struct {
	Tag        language.Tag
	DateLayout string
	TimeLayout string
}

// Date formats the calendar date of t.
func (l Locale) Date(t time.Time) string { return t.Format(l.DateLayout) }

// Time formats the time of day of t.
func (l Locale) Time(t time.Time) string { return t.Format(l.TimeLayout) }

// DateTime formats date and time of day together.
func (l Locale) DateTime(t time.Time) string {
	return t.Format(l.DateLayout) + ", " + t.Format(l.TimeLayout)
}

// Supported locales. The first is the default.
var locales = []Locale{
	{Tag: language.AmericanEnglish, DateLayout: "1/2/2006", TimeLayout: "3:04:05 PM"},
	{Tag: language.BritishEnglish, DateLayout: "02/01/2006", TimeLayout: "15:04:05"},
	{Tag: language.German, DateLayout: "2.1.2006", TimeLayout: "15:04:05"},
	{Tag: language.French, DateLayout: "02/01/2006", TimeLayout: "15:04:05"},
	{Tag: language.Spanish, DateLayout: "2/1/2006", TimeLayout: "15:04:05"},
	{Tag: language.Japanese, DateLayout: "2006/1/2", TimeLayout: "15:04:05"},
}

var matcher = language.NewMatcher(localeTags())

func localeTags() []language.Tag {
	tags := make([]language.Tag, len(locales))
	for i, l := range locales {
		tags[i] = l.Tag
	}
	return tags
}

// DefaultLocale is used when nothing better matches.
func DefaultLocale() Locale { return locales[0] }

// MatchLocale picks the supported locale closest to an Accept-Language value.
func MatchLocale(acceptLanguage string) Locale {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DefaultLocale()
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return DefaultLocale()
	}
	return locales[idx]
}
