package colspec

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/vecprep/internal/domain"
)

// Registry is the read-only set of column specs, in configured order.
// Safe for concurrent reads.
type Registry struct {
	order       []string
	specs       map[string]Spec
	categorical []string
	numeric     []string
}

// NewRegistry builds a registry from already validated specs.
// A column may appear at most once.
func NewRegistry(specs ...Spec) (*Registry, error) {
	r := &Registry{
		order: make([]string, 0, len(specs)),
		specs: make(map[string]Spec, len(specs)),
	}
	for _, s := range specs {
		if s.column == "" || (s.kind != Categorical && s.kind != Numeric) {
			return nil, domain.NewConfigError(s.column, "spec must be categorical or numeric")
		}
		if _, dup := r.specs[s.column]; dup {
			return nil, domain.NewConfigError(s.column, "column declared more than once")
		}
		r.specs[s.column] = s
		r.order = append(r.order, s.column)
		if s.kind == Categorical {
			r.categorical = append(r.categorical, s.column)
		} else {
			r.numeric = append(r.numeric, s.column)
		}
	}
	return r, nil
}

// Load parses a column-spec document. The document is a mapping from column
// name to either {values: [...]} or {scaler: {min, max}}. JSON is accepted
// as YAML. Mapping order defines the order of CategoricalColumns and
// NumericColumns.
func Load(r io.Reader) (*Registry, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.NewConfigError("", "column spec document is empty")
		}
		return nil, domain.NewConfigError("", "parse column spec: %v", err)
	}

	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil, domain.NewConfigError("", "column spec must be a mapping of column name to spec")
	}

	specs := make([]Spec, 0, len(doc.Content)/2)
	for i := 0; i+1 < len(doc.Content); i += 2 {
		column := doc.Content[i].Value
		s, err := parseEntry(column, doc.Content[i+1])
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return NewRegistry(specs...)
}

type scalerEntry struct {
	Min *float64 `yaml:"min"`
	Max *float64 `yaml:"max"`
}

func parseEntry(column string, n *yaml.Node) (Spec, error) {
	if column == "" {
		return Spec{}, domain.NewConfigError("", "column name is required")
	}
	if n.Kind != yaml.MappingNode {
		return Spec{}, domain.NewConfigError(column, "entry must be a mapping")
	}

	var valuesNode, scalerNode *yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		switch key := n.Content[i].Value; key {
		case "values":
			valuesNode = n.Content[i+1]
		case "scaler":
			scalerNode = n.Content[i+1]
		default:
			return Spec{}, domain.NewConfigError(column, "unknown key %q", key)
		}
	}
	if isNull(valuesNode) {
		valuesNode = nil
	}
	if isNull(scalerNode) {
		scalerNode = nil
	}

	switch {
	case valuesNode != nil && scalerNode != nil:
		return Spec{}, domain.NewConfigError(column, "entry declares both values and scaler")
	case valuesNode == nil && scalerNode == nil:
		return Spec{}, domain.NewConfigError(column, "entry declares neither values nor scaler")
	case valuesNode != nil:
		if valuesNode.Kind != yaml.SequenceNode {
			return Spec{}, domain.NewConfigError(column, "values must be a list of labels")
		}
		var values []string
		if err := valuesNode.Decode(&values); err != nil {
			return Spec{}, domain.NewConfigError(column, "decode values: %v", err)
		}
		return NewCategorical(column, values)
	default:
		var se scalerEntry
		if err := scalerNode.Decode(&se); err != nil {
			return Spec{}, domain.NewConfigError(column, "decode scaler: %v", err)
		}
		if se.Min == nil || se.Max == nil {
			return Spec{}, domain.NewConfigError(column, "scaler requires both min and max")
		}
		sc := Scaler{Min: *se.Min, Max: *se.Max}
		if sc.Degenerate() {
			return Spec{}, domain.NewConfigError(column, "scaler max equals min (%v)", sc.Min)
		}
		return NewNumeric(column, sc)
	}
}

func isNull(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

// CategoricalColumns returns the columns bound to a vocabulary, in configured order.
func (r *Registry) CategoricalColumns() []string { return clone(r.categorical) }

// NumericColumns returns the columns bound to a scaler, in configured order.
func (r *Registry) NumericColumns() []string { return clone(r.numeric) }

// Columns returns every configured column in order.
func (r *Registry) Columns() []string { return clone(r.order) }

// Len returns the number of configured columns.
func (r *Registry) Len() int { return len(r.order) }

// SpecFor returns the spec bound to column, if any.
func (r *Registry) SpecFor(column string) (Spec, bool) {
	s, ok := r.specs[column]
	return s, ok
}

// String implements fmt.Stringer for log fields.
func (r *Registry) String() string {
	return fmt.Sprintf("colspec(%d categorical, %d numeric)", len(r.categorical), len(r.numeric))
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
