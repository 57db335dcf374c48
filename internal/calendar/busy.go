// Package calendar turns raw calendar events into sorted, timezone-normalized
// busy periods.
package calendar

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/couchpilot/couchpilot/internal/faults"
)

// Period type values.
const (
	PeriodTimed  = "timed"
	PeriodAllDay = "all_day"
)

const untitledEvent = "No title or event details are private"

// BusyPeriod is one occupied interval in the target timezone.
// Invariant: Start <= End.
type BusyPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Title string    `json:"title"`
	Type  string    `json:"type"`
}

// DateRange is the analyzed window.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Document is the busy-period analyzer output. It is always valid structured
// data: failures surface in Error with BusyPeriods left empty.
type Document struct {
	CalendarID  string       `json:"calendar_id"`
	DateRange   DateRange    `json:"date_range"`
	Timezone    string       `json:"timezone"`
	BusyPeriods []BusyPeriod `json:"busy_periods"`
	Error       string       `json:"error,omitempty"`
}

// Analyzer fetches calendar events and extracts busy periods.
type Analyzer struct {
	client *Client
	log    *zap.Logger
}

// NewAnalyzer creates a busy-period analyzer.
func NewAnalyzer(client *Client, log *zap.Logger) *Analyzer {
	return &Analyzer{client: client, log: log}
}

// Analyze produces the busy-period document for one calendar day range.
// Upstream or credential failures degrade the document, never error out.
func (a *Analyzer) Analyze(ctx context.Context, calendarID, startDate, endDate, timezone string) *Document {
	doc := &Document{
		CalendarID:  calendarID,
		DateRange:   DateRange{Start: startDate, End: endDate},
		Timezone:    timezone,
		BusyPeriods: []BusyPeriod{},
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		doc.Error = "unknown timezone: " + timezone
		return doc
	}

	events, err := a.client.Events(ctx, calendarID, startDate, endDate)
	if err != nil {
		a.log.Warn("calendar fetch failed", zap.Error(err))
		doc.Error = err.Error()
		return doc
	}

	doc.BusyPeriods = a.ExtractBusyPeriods(events, loc)
	return doc
}

// ExtractBusyPeriods normalizes events into busy periods in loc, sorted
// ascending by start (stable, so same-start events keep input order).
// Events missing either boundary are skipped; malformed timestamps are a
// per-record fault and the event is skipped.
func (a *Analyzer) ExtractBusyPeriods(events []Event, loc *time.Location) []BusyPeriod {
	periods := make([]BusyPeriod, 0, len(events))

	for _, ev := range events {
		period, err := normalizeEvent(ev, loc)
		if err != nil {
			a.log.Debug("skipping calendar event", zap.String("summary", ev.Summary), zap.Error(err))
			continue
		}
		if period == nil {
			continue
		}
		periods = append(periods, *period)
	}

	sort.SliceStable(periods, func(i, j int) bool {
		return periods[i].Start.Before(periods[j].Start)
	})

	return periods
}

// normalizeEvent converts one event. Returns (nil, nil) for events missing a
// boundary, and a MalformedRecord fault for unparsable timestamps.
func normalizeEvent(ev Event, loc *time.Location) (*BusyPeriod, error) {
	if ev.Start == nil || ev.End == nil {
		return nil, nil
	}

	title := ev.Summary
	if title == "" {
		title = untitledEvent
	}

	if ev.Start.DateTime != "" {
		start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
		if err != nil {
			return nil, faults.Wrap(faults.MalformedRecord, err, "event start %q", ev.Start.DateTime)
		}
		end, err := time.Parse(time.RFC3339, ev.End.DateTime)
		if err != nil {
			return nil, faults.Wrap(faults.MalformedRecord, err, "event end %q", ev.End.DateTime)
		}
		return &BusyPeriod{
			Start: start.In(loc),
			End:   end.In(loc),
			Title: title,
			Type:  PeriodTimed,
		}, nil
	}

	if ev.Start.Date == "" || ev.End.Date == "" {
		return nil, nil
	}
	start, err := time.ParseInLocation("2006-01-02", ev.Start.Date, loc)
	if err != nil {
		return nil, faults.Wrap(faults.MalformedRecord, err, "event date %q", ev.Start.Date)
	}
	end, err := time.ParseInLocation("2006-01-02", ev.End.Date, loc)
	if err != nil {
		return nil, faults.Wrap(faults.MalformedRecord, err, "event end date %q", ev.End.Date)
	}
	return &BusyPeriod{
		Start: start,
		End:   end,
		Title: title,
		Type:  PeriodAllDay,
	}, nil
}
