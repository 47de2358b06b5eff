// Package reporting aggregates accuracy records into hit-rate reports.
package reporting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourusername/kyotei-predictor/internal/models"
	"github.com/yourusername/kyotei-predictor/internal/venue"
)

// RecordSource supplies accuracy records reconciled within a closed window.
type RecordSource interface {
	Records(ctx context.Context, since, until time.Time) ([]*models.AccuracyRecord, error)
}

// Report is a summary with its rates as percentages rounded to 0.1.
type Report struct {
	Label       string          `json:"label"`
	Summary     models.Summary  `json:"summary"`
	WinPct      decimal.Decimal `json:"win_pct"`
	PlacePct    decimal.Decimal `json:"place_pct"`
	TrifectaPct decimal.Decimal `json:"trifecta_pct"`
}

// Reporter builds reports from store reads. It holds no state of its own.
type Reporter struct {
	source RecordSource
	now    func() time.Time
}

// NewReporter creates a reporter over source.
func NewReporter(source RecordSource) *Reporter {
	return &Reporter{source: source, now: time.Now}
}

// Percent converts a rate in [0,1] to a percentage rounded to one decimal place.
func Percent(rate float64) decimal.Decimal {
	if math.IsNaN(rate) || rate <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(rate).Mul(decimal.NewFromInt(100)).Round(1)
}

// NewReport wraps a summary with rounded percentages.
func NewReport(label string, s models.Summary) Report {
	return Report{
		Label:       label,
		Summary:     s,
		WinPct:      Percent(s.WinRate),
		PlacePct:    Percent(s.PlaceRate),
		TrifectaPct: Percent(s.TrifectaRate),
	}
}

// AllTime summarizes every reconciled race.
func (r *Reporter) AllTime(ctx context.Context) (*Report, error) {
	return r.window(ctx, "all time", time.Unix(0, 0).UTC(), r.now())
}

// Rolling summarizes the races reconciled in the last days days.
func (r *Reporter) Rolling(ctx context.Context, days int) (*Report, error) {
	if days <= 0 {
		return nil, fmt.Errorf("rolling window must be at least one day, got %d", days)
	}
	until := r.now()
	return r.window(ctx, fmt.Sprintf("last %d days", days), until.AddDate(0, 0, -days), until)
}

// Daily breaks the window down by race date, oldest first.
func (r *Reporter) Daily(ctx context.Context, since, until time.Time) ([]Report, error) {
	records, err := r.source.Records(ctx, since, until)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*models.Summary)
	for _, rec := range records {
		add(groups, rec.Key.Date, since, until, rec)
	}

	dates := make([]string, 0, len(groups))
	for d := range groups {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	reports := make([]Report, 0, len(dates))
	for _, d := range dates {
		reports = append(reports, NewReport(d, *groups[d]))
	}
	return reports, nil
}

// ByVenue breaks the window down by venue, in venue id order.
func (r *Reporter) ByVenue(ctx context.Context, since, until time.Time) ([]Report, error) {
	records, err := r.source.Records(ctx, since, until)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*models.Summary)
	for _, rec := range records {
		add(groups, venueLabel(rec.Key.VenueID), since, until, rec)
	}

	labels := make([]string, 0, len(groups))
	for l := range groups {
		labels = append(labels, l)
	}
	// labels start with the two-digit venue code
	sort.Strings(labels)

	reports := make([]Report, 0, len(labels))
	for _, l := range labels {
		reports = append(reports, NewReport(l, *groups[l]))
	}
	return reports, nil
}

func (r *Reporter) window(ctx context.Context, label string, since, until time.Time) (*Report, error) {
	records, err := r.source.Records(ctx, since, until)
	if err != nil {
		return nil, err
	}
	s := models.Summary{Since: since, Until: until}
	for _, rec := range records {
		s.Add(rec)
	}
	report := NewReport(label, s)
	return &report, nil
}

func add(groups map[string]*models.Summary, label string, since, until time.Time, rec *models.AccuracyRecord) {
	s, ok := groups[label]
	if !ok {
		s = &models.Summary{Since: since, Until: until}
		groups[label] = s
	}
	s.Add(rec)
}

func venueLabel(id int) string {
	return fmt.Sprintf("%02d %s", id, venue.Name(id))
}
