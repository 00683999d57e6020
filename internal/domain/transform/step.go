// Package transform holds the feature engineering steps. Each step is an
// immutable value that maps a table to a new table or fails; none of them
// modifies its input.
package transform

import (
	"errors"

	"github.com/kailas-cloud/vecprep/internal/domain"
	"github.com/kailas-cloud/vecprep/internal/domain/table"
)

// Step is one named transformation over a working table.
type Step interface {
	Name() string
	Apply(t *table.Table) (*table.Table, error)
}

// Step names used in errors, logs and metrics.
const (
	NameGroupNeighbourhoods = "group_rare_neighbourhoods"
	NameBucketRecency       = "bucket_review_recency"
	NameBinaryFeatures      = "derive_binary_features"
	NameEncodeCategorical   = "encode_categorical"
	NameScaleNumeric        = "scale_numeric"
	NameHandleMissing       = "handle_missing"
	NameRemoveDuplicates    = "remove_duplicates"
	NameEncodeLabels        = "encode_labels"
)

// attribute tags a table-level schema error with the step that hit it.
func attribute(step string, err error) error {
	var se *domain.SchemaError
	if errors.As(err, &se) && se.Step == "" {
		return &domain.SchemaError{Step: step, Column: se.Column, Reason: se.Reason}
	}
	return err
}

func column(step string, t *table.Table, name string) ([]table.Value, error) {
	col, ok := t.Column(name)
	if !ok {
		return nil, domain.NewSchemaError(step, name, "column not found")
	}
	return col, nil
}
