package batch

// ItemStatus is the processing outcome of a single source in an ingest run.
type ItemStatus string

// Source status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Stage names where a source can fail.
const (
	StageRead       = "read"
	StagePreprocess = "preprocess"
	StageSave       = "save"
)

// Result is the outcome of processing one source in an ingest run.
type Result struct {
	source string
	status ItemStatus
	stage  string
	rows   int
	err    error
}

// NewOK creates a successful result for a source that produced rows vectors.
func NewOK(source string, rows int) Result {
	return Result{source: source, status: StatusOK, rows: rows}
}

// NewError creates a failed result for a source that failed at stage.
func NewError(source, stage string, err error) Result {
	return Result{source: source, status: StatusError, stage: stage, err: err}
}

// Source returns the source identifier (usually a file path).
func (r Result) Source() string { return r.source }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Stage returns the failing stage, empty on success.
func (r Result) Stage() string { return r.stage }

// Rows returns the number of vectors written.
func (r Result) Rows() int { return r.rows }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Summary aggregates per-source results.
type Summary struct {
	Sources int
	OK      int
	Failed  int
	Rows    int
}

// Summarize counts outcomes across results.
func Summarize(results []Result) Summary {
	s := Summary{Sources: len(results)}
	for _, r := range results {
		if r.status == StatusOK {
			s.OK++
			s.Rows += r.rows
			continue
		}
		s.Failed++
	}
	return s
}
