package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecprep/internal/domain"
	"github.com/kailas-cloud/vecprep/internal/domain/batch"
	"github.com/kailas-cloud/vecprep/internal/domain/table"
	healthuc "github.com/kailas-cloud/vecprep/internal/usecase/health"
)

// DefaultMaxBodyBytes caps the size of a features request body.
const DefaultMaxBodyBytes = 8 << 20

// Preprocessor turns a raw table into a feature batch.
type Preprocessor interface {
	Run(ctx context.Context, raw *table.Table) (*table.FeatureBatch, error)
}

// Sink stores feature vectors.
type Sink interface {
	Save(ctx context.Context, b *table.FeatureBatch) (int, error)
}

// Ingester runs one ingest pass over the data directory.
type Ingester interface {
	Run(ctx context.Context) ([]batch.Result, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the feature API.
type Server struct {
	pre           Preprocessor
	sink          Sink
	ingest        Ingester
	health        HealthChecker
	gatherer      prometheus.Gatherer
	keyColumn     string
	maxBodyBytes  int64
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. sink and ingest may be nil, which
// disables storing from /v1/features and the /v1/ingest route respectively.
func NewServer(pre Preprocessor, sink Sink, ingest Ingester, health HealthChecker, logger *zap.Logger) *Server {
	return &Server{
		pre:          pre,
		sink:         sink,
		ingest:       ingest,
		health:       health,
		gatherer:     prometheus.DefaultGatherer,
		keyColumn:    "id",
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       logger,
		errorHandlers: []errorHandler{
			sentinelHandler(domain.ErrSchema, http.StatusUnprocessableEntity, CodeSchemaMismatch),
			sentinelHandler(domain.ErrVectorDimMismatch, http.StatusConflict, CodeVectorDimMismatch),
			sentinelHandler(domain.ErrConfig, http.StatusInternalServerError, CodeInvalidConfig),
		},
	}
}

// WithKeyColumn sets the default row key column for request batches.
func (s *Server) WithKeyColumn(name string) *Server {
	s.keyColumn = name
	return s
}

// WithGatherer sets the registry served on /metrics.
func (s *Server) WithGatherer(g prometheus.Gatherer) *Server {
	if g != nil {
		s.gatherer = g
	}
	return s
}

// WithMaxBodyBytes caps request bodies.
func (s *Server) WithMaxBodyBytes(n int64) *Server {
	if n > 0 {
		s.maxBodyBytes = n
	}
	return s
}

// Mount registers the API routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Post("/v1/features", s.Features)
	if s.ingest != nil {
		r.Post("/v1/ingest", s.Ingest)
	}
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Features handles POST /v1/features. With ?store=true the vectors are
// also written to the index.
func (s *Server) Features(w http.ResponseWriter, r *http.Request) {
	store := false
	if v := r.URL.Query().Get("store"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "store must be a boolean")
			return
		}
		store = b
	}
	if store && s.sink == nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "storage is not configured")
		return
	}

	var req FeaturesRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	dec.UseNumber() // ids beyond 2^53 must keep every digit
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	keyColumn := s.keyColumn
	if req.KeyColumn != nil {
		keyColumn = *req.KeyColumn
	}
	raw, err := tableFromRequest(req, keyColumn)
	if err != nil {
		if errors.Is(err, domain.ErrSchema) {
			s.handleDomainError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	features, err := s.pre.Run(r.Context(), raw)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := featuresToResponse(features)
	if store {
		n, err := s.sink.Save(r.Context(), features)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		resp.Stored = &n
	}
	writeJSON(w, http.StatusOK, resp)
}

// Ingest handles POST /v1/ingest.
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request) {
	results, err := s.ingest.Run(r.Context())
	switch {
	case errors.Is(err, domain.ErrNoNewData):
		writeJSON(w, http.StatusOK, IngestResponse{Status: IngestNoNewData, Sources: []IngestSource{}})
		return
	case err != nil && !errors.Is(err, domain.ErrNothingProcessed):
		s.handleDomainError(w, err)
		return
	}

	resp := IngestResponse{
		Status:  IngestOK,
		Sources: make([]IngestSource, len(results)),
		Summary: summaryToResponse(batch.Summarize(results)),
	}
	for i, res := range results {
		resp.Sources[i] = ingestSourceToResponse(res)
	}
	status := http.StatusOK
	if err != nil {
		resp.Status = IngestFailed
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
		Points: report.Points,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-facing message without exposing internals.
// Schema errors name only the step and column of the caller's own batch.
func safeDomainMessage(err error) string {
	var se *domain.SchemaError
	if errors.As(err, &se) {
		return se.Error()
	}
	sentinels := []error{
		domain.ErrSchema,
		domain.ErrVectorDimMismatch,
		domain.ErrConfig,
		domain.ErrNothingProcessed,
		domain.ErrNoNewData,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func errorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, domain.ErrSchema):
		return CodeSchemaMismatch
	case errors.Is(err, domain.ErrVectorDimMismatch):
		return CodeVectorDimMismatch
	case errors.Is(err, domain.ErrConfig):
		return CodeInvalidConfig
	default:
		return CodeInternalError
	}
}

func tableFromRequest(req FeaturesRequest, keyColumn string) (*table.Table, error) {
	if len(req.Columns) == 0 {
		return nil, errors.New("columns are required")
	}
	keyIdx := slices.Index(req.Columns, keyColumn)
	if keyColumn == "" {
		keyIdx = -1
	}
	var keys []string
	if keyIdx >= 0 {
		keys = make([]string, len(req.Rows))
	}

	cols := make([][]table.Value, len(req.Columns))
	for c := range cols {
		cols[c] = make([]table.Value, len(req.Rows))
	}
	for i, row := range req.Rows {
		if len(row) != len(req.Columns) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(req.Columns))
		}
		for c, cell := range row {
			v, err := cellValue(cell)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, req.Columns[c], err)
			}
			cols[c][i] = v
		}
		if keyIdx >= 0 {
			keys[i] = keyText(row[keyIdx])
		}
	}
	return table.FromKeyedColumns(req.Columns, cols, keyColumn, keys)
}

// keyText is the exact text of a key cell; null and NA cells yield "".
func keyText(cell any) string {
	switch c := cell.(type) {
	case json.Number:
		return c.String()
	case string:
		if table.IsNAToken(c) {
			return ""
		}
		return c
	case bool:
		return strconv.FormatBool(c)
	default:
		return ""
	}
}

func cellValue(cell any) (table.Value, error) {
	switch c := cell.(type) {
	case nil:
		return table.Null(), nil
	case string:
		if table.IsNAToken(c) {
			return table.Null(), nil
		}
		return table.String(c), nil
	case json.Number:
		f, err := c.Float64()
		if err != nil {
			return table.Value{}, fmt.Errorf("number %s: %w", c, err)
		}
		return table.Number(f), nil
	case float64:
		return table.Number(c), nil
	case bool:
		return table.Bool(c), nil
	default:
		return table.Value{}, fmt.Errorf("unsupported cell type %T", cell)
	}
}

func featuresToResponse(b *table.FeatureBatch) FeaturesResponse {
	resp := FeaturesResponse{
		Columns: b.Columns(),
		Rows:    make([]FeatureRow, b.Len()),
	}
	for i := range resp.Rows {
		row := b.Row(i)
		values := make([]*float64, len(row))
		for c, v := range row {
			if math.IsNaN(v) {
				continue
			}
			values[c] = &row[c]
		}
		resp.Rows[i] = FeatureRow{Key: b.Key(i), Values: values}
	}
	return resp
}

func ingestSourceToResponse(r batch.Result) IngestSource {
	item := IngestSource{
		Source: r.Source(),
		Status: r.Status(),
		Rows:   r.Rows(),
		Stage:  r.Stage(),
	}
	if r.Err() != nil {
		item.Error = &ErrorResponse{
			Code:    errorCode(r.Err()),
			Message: safeDomainMessage(r.Err()),
		}
	}
	return item
}

func summaryToResponse(s batch.Summary) IngestSummary {
	return IngestSummary{Sources: s.Sources, OK: s.OK, Failed: s.Failed, Rows: s.Rows}
}
