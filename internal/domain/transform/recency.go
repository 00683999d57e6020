package transform

import (
	"strings"
	"time"

	"github.com/kailas-cloud/vecprep/internal/domain/table"
)

// Review recency labels.
const (
	RecencyNone      = "No reviews"
	RecencyMonth     = "Last month"
	RecencyQuarter   = "Last quarter"
	RecencyYear      = "Last year"
	RecencyOverAYear = "Over a year ago"
)

// Recency thresholds in days, inclusive.
const (
	MonthDays   = 30
	QuarterDays = 90
	YearDays    = 365
)

// ReviewDateLayout accepts a four-digit year and one or two digit month and day.
const ReviewDateLayout = "2006-1-2"

const secondsPerDay = 24 * 60 * 60

// BucketReviewRecency turns the review date into a day count and a recency
// label. Missing or unparseable dates are not errors; they yield a null day
// count and RecencyNone.
//
// The reference date is the latest valid date in the batch being processed,
// so the same row can land in different buckets depending on what it is
// batched with.
type BucketReviewRecency struct {
	Date  string
	Days  string
	Label string
}

// Name returns the step name.
func (BucketReviewRecency) Name() string { return NameBucketRecency }

// Apply appends (or replaces) the day-count and label columns.
func (s BucketReviewRecency) Apply(t *table.Table) (*table.Table, error) {
	raw, err := column(NameBucketRecency, t, s.Date)
	if err != nil {
		return nil, err
	}

	dates := make([]time.Time, len(raw))
	valid := make([]bool, len(raw))
	var (
		ref    time.Time
		hasRef bool
	)
	for i, v := range raw {
		d, ok := parseReviewDate(v)
		if !ok {
			continue
		}
		dates[i], valid[i] = d, true
		if !hasRef || d.After(ref) {
			ref, hasRef = d, true
		}
	}

	days := make([]table.Value, len(raw))
	labels := make([]table.Value, len(raw))
	for i := range raw {
		if !valid[i] {
			days[i] = table.Null()
			labels[i] = table.String(RecencyNone)
			continue
		}
		n := int((ref.Unix() - dates[i].Unix()) / secondsPerDay)
		days[i] = table.Number(float64(n))
		labels[i] = table.String(RecencyLabel(n))
	}

	next, err := t.WithColumn(s.Days, days)
	if err != nil {
		return nil, err
	}
	return next.WithColumn(s.Label, labels)
}

// RecencyLabel buckets a non-negative day count.
func RecencyLabel(days int) string {
	switch {
	case days <= MonthDays:
		return RecencyMonth
	case days <= QuarterDays:
		return RecencyQuarter
	case days <= YearDays:
		return RecencyYear
	default:
		return RecencyOverAYear
	}
}

func parseReviewDate(v table.Value) (time.Time, bool) {
	if v.Kind() != table.KindString {
		return time.Time{}, false
	}
	s, _ := v.Text()
	d, err := time.Parse(ReviewDateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
