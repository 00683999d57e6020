package preprocess

import (
	"github.com/kailas-cloud/vecprep/internal/domain"
)

// Layout names the raw columns the fixed steps read, derive and drop.
// Registry-driven columns (categorical and numeric) are not part of it.
type Layout struct {
	Identity []string

	Neighbourhood      string
	NeighbourhoodGroup string

	LastReview      string
	DaysSinceReview string
	ReviewRecency   string
	RecencyHelpers  []string

	HostListings  string
	HostsMultiple string
	Availability  string
	Superseded    []string
}

// DefaultLayout returns the column names of the listings dataset.
func DefaultLayout() Layout {
	return Layout{
		Identity:           []string{"id", "name", "host_id", "host_name"},
		Neighbourhood:      "neighbourhood",
		NeighbourhoodGroup: "neighbourhood_group",
		LastReview:         "last_review",
		DaysSinceReview:    "days_since_review",
		ReviewRecency:      "review_recency",
		RecencyHelpers:     []string{"reviews_per_month", "days_since_review", "last_review"},
		HostListings:       "host_listing_count",
		HostsMultiple:      "hosts_multiple_apts",
		Availability:       "availability_365",
		Superseded:         []string{"host_listing_count", "minimum_nights"},
	}
}

// Validate checks that every single-column name is set.
func (l Layout) Validate() error {
	named := []struct{ field, value string }{
		{"neighbourhood", l.Neighbourhood},
		{"neighbourhood_group", l.NeighbourhoodGroup},
		{"last_review", l.LastReview},
		{"days_since_review", l.DaysSinceReview},
		{"review_recency", l.ReviewRecency},
		{"host_listing_count", l.HostListings},
		{"hosts_multiple_apts", l.HostsMultiple},
		{"availability_365", l.Availability},
	}
	for _, n := range named {
		if n.value == "" {
			return domain.NewConfigError("", "pipeline layout: %s column name is empty", n.field)
		}
	}
	return nil
}
