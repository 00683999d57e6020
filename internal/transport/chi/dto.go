package chi

import "github.com/kailas-cloud/vecprep/internal/domain/batch"

// ErrorCode is a machine-readable error identifier returned to clients.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest        ErrorCode = "bad_request"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodeValidationFailed  ErrorCode = "validation_failed"
	CodeSchemaMismatch    ErrorCode = "schema_mismatch"
	CodeInvalidConfig     ErrorCode = "invalid_configuration"
	CodeVectorDimMismatch ErrorCode = "vector_dim_mismatch"
	CodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of error replies.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// FeaturesRequest carries a raw batch in column order. Cells may be JSON
// strings, numbers, booleans or null.
type FeaturesRequest struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	KeyColumn *string  `json:"key_column,omitempty"`
}

// FeatureRow is one output vector. Missing values are null.
type FeatureRow struct {
	Key    string     `json:"key"`
	Values []*float64 `json:"values"`
}

// FeaturesResponse is the preprocessed batch.
type FeaturesResponse struct {
	Columns []string     `json:"columns"`
	Rows    []FeatureRow `json:"rows"`
	Stored  *int         `json:"stored,omitempty"`
}

// IngestStatus summarises an ingest pass.
type IngestStatus string

// Ingest statuses.
const (
	IngestOK        IngestStatus = "ok"
	IngestNoNewData IngestStatus = "no_new_data"
	IngestFailed    IngestStatus = "failed"
)

// IngestSource is the outcome of one source.
type IngestSource struct {
	Source string           `json:"source"`
	Status batch.ItemStatus `json:"status"`
	Rows   int              `json:"rows"`
	Stage  string           `json:"stage,omitempty"`
	Error  *ErrorResponse   `json:"error,omitempty"`
}

// IngestResponse is the reply to POST /v1/ingest.
type IngestResponse struct {
	Status  IngestStatus   `json:"status"`
	Sources []IngestSource `json:"sources"`
	Summary IngestSummary  `json:"summary"`
}

// IngestSummary counts the outcomes of an ingest pass.
type IngestSummary struct {
	Sources int `json:"sources"`
	OK      int `json:"ok"`
	Failed  int `json:"failed"`
	Rows    int `json:"rows"`
}

// HealthResponse is the reply to GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Points int64             `json:"points"`
}
