package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecprep/internal/domain"
	"github.com/kailas-cloud/vecprep/internal/domain/batch"
	"github.com/kailas-cloud/vecprep/internal/domain/table"
	healthuc "github.com/kailas-cloud/vecprep/internal/usecase/health"
)

// --- Mocks ---

// mockPreprocessor freezes the numeric columns of the request table.
type mockPreprocessor struct {
	err  error
	seen *table.Table
}

func (m *mockPreprocessor) Run(_ context.Context, raw *table.Table) (*table.FeatureBatch, error) {
	m.seen = raw
	if m.err != nil {
		return nil, m.err
	}
	return raw.Freeze()
}

type mockSink struct {
	err   error
	calls int
}

func (m *mockSink) Save(_ context.Context, b *table.FeatureBatch) (int, error) {
	m.calls++
	if m.err != nil {
		return 0, m.err
	}
	return b.Len(), nil
}

type mockIngester struct {
	results []batch.Result
	err     error
}

func (m *mockIngester) Run(_ context.Context) ([]batch.Result, error) { return m.results, m.err }

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

func newTestRouter(s *Server) http.Handler {
	r := chi.NewRouter()
	s.Mount(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

const featuresBody = `{"columns":["id","price","avail"],"rows":[[1,0.5,1],[2,null,0]]}`

// --- Tests ---

func TestFeatures_OK(t *testing.T) {
	pre := &mockPreprocessor{}
	h := newTestRouter(NewServer(pre, nil, nil, &mockHealth{}, zap.NewNop()))

	rr := do(t, h, http.MethodPost, "/v1/features", featuresBody)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	var resp FeaturesResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Rows) != 2 || resp.Rows[0].Key != "1" || resp.Rows[1].Key != "2" {
		t.Fatalf("rows = %+v", resp.Rows)
	}
	if v := resp.Rows[0].Values[1]; v == nil || *v != 0.5 {
		t.Errorf("row 0 price = %v", v)
	}
	if resp.Rows[1].Values[1] != nil {
		t.Errorf("missing value must encode as null, got %v", *resp.Rows[1].Values[1])
	}
	if resp.Stored != nil {
		t.Error("stored must be absent without ?store")
	}
}

func TestFeatures_KeyColumnOverride(t *testing.T) {
	pre := &mockPreprocessor{}
	h := newTestRouter(NewServer(pre, nil, nil, &mockHealth{}, zap.NewNop()))

	body := `{"columns":["ref","x"],"rows":[["a",1],["b",2]],"key_column":"ref"}`
	rr := do(t, h, http.MethodPost, "/v1/features", body)
	// "ref" stays a string column, so freezing fails with a schema error.
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rr.Code)
	}
	if pre.seen.Key(0) != "a" || pre.seen.Key(1) != "b" {
		t.Errorf("keys = %v", pre.seen.Keys())
	}
}

func TestFeatures_LongIDsKeepEveryDigit(t *testing.T) {
	pre := &mockPreprocessor{}
	h := newTestRouter(NewServer(pre, nil, nil, &mockHealth{}, zap.NewNop()))

	body := `{"columns":["id","price"],"rows":[[862839425380447573,10],[862839425380447574,20],["007",30]]}`
	// The mixed-type id column does not freeze; only the keys matter here.
	_ = do(t, h, http.MethodPost, "/v1/features", body)
	want := []string{"862839425380447573", "862839425380447574", "007"}
	if got := pre.seen.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}
	price, _ := pre.seen.Column("price")
	if f, _ := price[1].Float(); f != 20 {
		t.Errorf("price[1] = %v", price[1])
	}
}

func TestFeatures_CellConversion(t *testing.T) {
	pre := &mockPreprocessor{}
	h := newTestRouter(NewServer(pre, nil, nil, &mockHealth{}, zap.NewNop()))

	body := `{"columns":["id","a","b","c"],"rows":[[7,"NA",true,"Studio"]]}`
	_ = do(t, h, http.MethodPost, "/v1/features", body)

	a, _ := pre.seen.Column("a")
	if !a[0].IsNull() {
		t.Errorf("NA token must be null, got %v", a[0])
	}
	b, _ := pre.seen.Column("b")
	if f, _ := b[0].Float(); f != 1 {
		t.Errorf("true must be 1, got %v", b[0])
	}
	c, _ := pre.seen.Column("c")
	if s, _ := c[0].Text(); s != "Studio" {
		t.Errorf("c = %q", s)
	}
}

func TestFeatures_Store(t *testing.T) {
	sink := &mockSink{}
	h := newTestRouter(NewServer(&mockPreprocessor{}, sink, nil, &mockHealth{}, zap.NewNop()))

	rr := do(t, h, http.MethodPost, "/v1/features?store=true", `{"columns":["id","x"],"rows":[[1,0.1],[2,0.2]]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	var resp FeaturesResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Stored == nil || *resp.Stored != 2 {
		t.Errorf("stored = %v", resp.Stored)
	}
	if sink.calls != 1 {
		t.Errorf("sink calls = %d", sink.calls)
	}
}

func TestFeatures_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		pre      *mockPreprocessor
		sink     Sink
		wantCode int
		wantErr  ErrorCode
	}{
		{
			name: "malformed json", path: "/v1/features", body: `{"columns":`,
			pre: &mockPreprocessor{}, wantCode: http.StatusBadRequest, wantErr: CodeBadRequest,
		},
		{
			name: "no columns", path: "/v1/features", body: `{"rows":[]}`,
			pre: &mockPreprocessor{}, wantCode: http.StatusBadRequest, wantErr: CodeValidationFailed,
		},
		{
			name: "ragged row", path: "/v1/features", body: `{"columns":["a","b"],"rows":[[1]]}`,
			pre: &mockPreprocessor{}, wantCode: http.StatusBadRequest, wantErr: CodeValidationFailed,
		},
		{
			name: "nested cell", path: "/v1/features", body: `{"columns":["a"],"rows":[[{"x":1}]]}`,
			pre: &mockPreprocessor{}, wantCode: http.StatusBadRequest, wantErr: CodeValidationFailed,
		},
		{
			name: "duplicate column", path: "/v1/features", body: `{"columns":["a","a"],"rows":[[1,2]]}`,
			pre: &mockPreprocessor{}, wantCode: http.StatusUnprocessableEntity, wantErr: CodeSchemaMismatch,
		},
		{
			name: "duplicate key", path: "/v1/features", body: `{"columns":["id","x"],"rows":[[5,1],[5,2]]}`,
			pre: &mockPreprocessor{}, wantCode: http.StatusUnprocessableEntity, wantErr: CodeSchemaMismatch,
		},
		{
			name: "null key", path: "/v1/features", body: `{"columns":["id","x"],"rows":[[5,1],[null,2]]}`,
			pre: &mockPreprocessor{}, wantCode: http.StatusUnprocessableEntity, wantErr: CodeSchemaMismatch,
		},
		{
			name: "bad store flag", path: "/v1/features?store=maybe", body: featuresBody,
			pre: &mockPreprocessor{}, wantCode: http.StatusBadRequest, wantErr: CodeBadRequest,
		},
		{
			name: "store without sink", path: "/v1/features?store=1", body: featuresBody,
			pre: &mockPreprocessor{}, wantCode: http.StatusBadRequest, wantErr: CodeValidationFailed,
		},
		{
			name: "schema error", path: "/v1/features", body: featuresBody,
			pre: &mockPreprocessor{
				err: fmt.Errorf("preprocess: %w", domain.NewSchemaError("encode_categorical", "room_type", "column not found")),
			},
			wantCode: http.StatusUnprocessableEntity, wantErr: CodeSchemaMismatch,
		},
		{
			name: "dimension mismatch", path: "/v1/features?store=true", body: featuresBody,
			pre:  &mockPreprocessor{},
			sink: &mockSink{err: fmt.Errorf("save: %w", domain.ErrVectorDimMismatch)},
			wantCode: http.StatusConflict, wantErr: CodeVectorDimMismatch,
		},
		{
			name: "internal", path: "/v1/features", body: featuresBody,
			pre:      &mockPreprocessor{err: errors.New("dial tcp 10.0.0.1:6379: refused")},
			wantCode: http.StatusInternalServerError, wantErr: CodeInternalError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(NewServer(tt.pre, tt.sink, nil, &mockHealth{}, zap.NewNop()))
			rr := do(t, h, http.MethodPost, tt.path, tt.body)
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.wantCode, rr.Body)
			}
			var errResp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if errResp.Code != tt.wantErr {
				t.Errorf("code = %s, want %s", errResp.Code, tt.wantErr)
			}
			if strings.Contains(errResp.Message, "10.0.0.1") {
				t.Errorf("internal details leaked: %q", errResp.Message)
			}
		})
	}
}

func TestFeatures_SchemaMessageNamesColumn(t *testing.T) {
	pre := &mockPreprocessor{err: domain.NewSchemaError("scale_numeric", "price", "column not found")}
	h := newTestRouter(NewServer(pre, nil, nil, &mockHealth{}, zap.NewNop()))

	rr := do(t, h, http.MethodPost, "/v1/features", featuresBody)
	var errResp ErrorResponse
	_ = json.NewDecoder(rr.Body).Decode(&errResp)
	if !strings.Contains(errResp.Message, `"price"`) || !strings.Contains(errResp.Message, "scale_numeric") {
		t.Errorf("message = %q", errResp.Message)
	}
}

func TestIngest(t *testing.T) {
	okAndFailed := []batch.Result{
		batch.NewOK("data/a.csv", 10),
		batch.NewError("data/b.csv", batch.StagePreprocess, domain.NewSchemaError("freeze", "license", "not numeric")),
	}
	tests := []struct {
		name       string
		ing        *mockIngester
		wantCode   int
		wantStatus IngestStatus
		wantItems  int
	}{
		{"partial success", &mockIngester{results: okAndFailed}, http.StatusOK, IngestOK, 2},
		{"no new data", &mockIngester{err: fmt.Errorf("detect: %w", domain.ErrNoNewData)}, http.StatusOK, IngestNoNewData, 0},
		{
			"nothing processed",
			&mockIngester{results: okAndFailed[1:], err: domain.ErrNothingProcessed},
			http.StatusUnprocessableEntity, IngestFailed, 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(NewServer(&mockPreprocessor{}, nil, tt.ing, &mockHealth{}, zap.NewNop()))
			rr := do(t, h, http.MethodPost, "/v1/ingest", "")
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			var resp IngestResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantStatus || len(resp.Sources) != tt.wantItems {
				t.Errorf("resp = %+v", resp)
			}
		})
	}
}

func TestIngest_SourceErrorsAreSafe(t *testing.T) {
	ing := &mockIngester{results: []batch.Result{
		batch.NewOK("data/a.csv", 3),
		batch.NewError("data/b.csv", batch.StageSave, errors.New("HSET vecprep:listings:1: READONLY replica at 10.0.0.2")),
	}}
	h := newTestRouter(NewServer(&mockPreprocessor{}, nil, ing, &mockHealth{}, zap.NewNop()))

	rr := do(t, h, http.MethodPost, "/v1/ingest", "")
	var resp IngestResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)

	if resp.Summary != (IngestSummary{Sources: 2, OK: 1, Failed: 1, Rows: 3}) {
		t.Errorf("summary = %+v", resp.Summary)
	}
	failed := resp.Sources[1]
	if failed.Stage != batch.StageSave || failed.Error == nil {
		t.Fatalf("failed source = %+v", failed)
	}
	if failed.Error.Code != CodeInternalError || failed.Error.Message != "internal error" {
		t.Errorf("error = %+v", failed.Error)
	}
}

func TestIngest_DetectFailure(t *testing.T) {
	ing := &mockIngester{err: errors.New("check data dir: permission denied")}
	h := newTestRouter(NewServer(&mockPreprocessor{}, nil, ing, &mockHealth{}, zap.NewNop()))
	if rr := do(t, h, http.MethodPost, "/v1/ingest", ""); rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestIngest_NotMountedWithoutIngester(t *testing.T) {
	h := newTestRouter(NewServer(&mockPreprocessor{}, nil, nil, &mockHealth{}, zap.NewNop()))
	if rr := do(t, h, http.MethodPost, "/v1/ingest", ""); rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name     string
		report   healthuc.Report
		wantCode int
	}{
		{
			"healthy",
			healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK}, Points: 5},
			http.StatusOK,
		},
		{
			"unhealthy",
			healthuc.Report{Status: healthuc.Unhealthy, Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckError}},
			http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(NewServer(&mockPreprocessor{}, nil, nil, &mockHealth{report: tt.report}, zap.NewNop()))
			rr := do(t, h, http.MethodGet, "/health", "")
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			var resp HealthResponse
			_ = json.NewDecoder(rr.Body).Decode(&resp)
			if resp.Status != string(tt.report.Status) || resp.Points != tt.report.Points {
				t.Errorf("resp = %+v", resp)
			}
		})
	}
}

func TestMetrics_ServesGatherer(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_marker_total", Help: "marker"})
	reg.MustRegister(c)
	c.Inc()

	s := NewServer(&mockPreprocessor{}, nil, nil, &mockHealth{}, zap.NewNop()).WithGatherer(reg)
	rr := do(t, newTestRouter(s), http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "test_marker_total 1") {
		t.Errorf("status %d body %s", rr.Code, rr.Body)
	}
}

func TestFeaturesToResponse_NaN(t *testing.T) {
	tb, _ := table.FromColumns([]string{"x"}, [][]table.Value{{table.Null()}}, "")
	b, err := tb.Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if !math.IsNaN(b.Value(0, 0)) {
		t.Fatal("expected NaN in frozen batch")
	}
	if resp := featuresToResponse(b); resp.Rows[0].Values[0] != nil {
		t.Error("NaN must become null")
	}
}
