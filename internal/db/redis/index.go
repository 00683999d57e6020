package redis

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/vecprep/internal/db"
)

// CreateIndex creates an FT index over hashes.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// DropIndex removes an FT index by name. Documents are kept.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isUnknownIndex(err) {
			return db.ErrIndexNotFound
		}
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	return nil
}

// IndexExists checks index existence via FT.INFO.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	_, err := s.IndexInfo(ctx, name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, db.ErrIndexNotFound):
		return false, nil
	default:
		return false, err
	}
}

// IndexInfo reads the document count and vector dimension from FT.INFO.
func (s *Store) IndexInfo(ctx context.Context, name string) (db.IndexInfo, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	m, err := s.do(ctx, cmd).AsMap()
	if err != nil {
		if isUnknownIndex(err) {
			return db.IndexInfo{}, db.ErrIndexNotFound
		}
		return db.IndexInfo{}, &db.Error{Op: db.OpIndexInfo, Err: err}
	}

	info := db.IndexInfo{Name: name}
	if v, ok := m["num_docs"]; ok {
		// Redis reports num_docs as a bulk string, Valkey as an integer.
		if n, err := v.AsInt64(); err == nil {
			info.NumDocs = n
		} else if f, err := v.AsFloat64(); err == nil {
			info.NumDocs = int64(f)
		}
	}
	if v, ok := m["attributes"]; ok {
		if attrs, err := v.ToArray(); err == nil {
			info.Dimension = vectorDim(attrs)
		}
	}
	return info, nil
}

// vectorDim returns the dimension of the first VECTOR attribute, 0 if none is
// reported. Redis lists "dim" flat in the attribute; valkey-search nests
// "dimensions" in an "index" sub-list.
func vectorDim(attrs []rueidis.RedisMessage) int {
	for _, a := range attrs {
		kv, err := a.ToArray()
		if err != nil || !isVectorAttr(kv) {
			continue
		}
		if d := findDim(kv); d > 0 {
			return d
		}
	}
	return 0
}

func isVectorAttr(kv []rueidis.RedisMessage) bool {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, err := kv[i].ToString(); err == nil && strings.EqualFold(k, "type") {
			v, _ := kv[i+1].ToString()
			return strings.EqualFold(v, "VECTOR")
		}
	}
	return false
}

func findDim(kv []rueidis.RedisMessage) int {
	for i := 0; i+1 < len(kv); i += 2 {
		k, err := kv[i].ToString()
		if err != nil {
			continue
		}
		v := kv[i+1]
		switch strings.ToLower(k) {
		case "dim", "dimensions":
			if n, err := v.AsInt64(); err == nil {
				return int(n)
			}
		}
		if nested, err := v.ToArray(); err == nil {
			if d := findDim(nested); d > 0 {
				return d
			}
		}
	}
	return 0
}

// isUnknownIndex matches both the Redis ("Unknown index name") and Valkey
// ("Index with name ... not found") replies.
func isUnknownIndex(err error) bool {
	return isRedisErr(err, "unknown index name") || isRedisErr(err, "not found")
}

func buildCreateArgs(idx *db.IndexDefinition) ([]string, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}

	args := []string{idx.Name, "ON", db.StorageHash}
	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}
	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		fieldArgs, err := buildFieldArgs(&idx.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}
	return args, nil
}

func buildFieldArgs(f *db.IndexField) ([]string, error) {
	if f.Name == "" {
		return nil, errors.New("field name is required")
	}

	args := []string{f.Name}
	if f.Alias != "" {
		args = append(args, "AS", f.Alias)
	}

	switch f.Type {
	case db.IndexFieldTag:
		args = append(args, "TAG")
	case db.IndexFieldNumeric:
		args = append(args, "NUMERIC")
	case db.IndexFieldVector:
		vectorArgs, err := buildVectorFieldArgs(f)
		if err != nil {
			return nil, err
		}
		args = append(args, vectorArgs...)
	default:
		return nil, errors.New("unknown field type")
	}
	return args, nil
}

func buildVectorFieldArgs(f *db.IndexField) ([]string, error) {
	if f.VectorDim <= 0 {
		return nil, errors.New("vector DIM must be positive")
	}

	algo := f.VectorAlgo
	if algo == "" {
		algo = db.VectorFlat
	}
	distance := f.VectorDistance
	if distance == "" {
		distance = db.DistanceCosine
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.VectorDim),
		"DISTANCE_METRIC", string(distance),
	}
	if algo == db.VectorHNSW {
		if f.VectorM > 0 {
			attrs = append(attrs, "M", strconv.Itoa(f.VectorM))
		}
		if f.VectorEFConstruct > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.VectorEFConstruct))
		}
	}

	out := make([]string, 0, 3+len(attrs))
	out = append(out, "VECTOR", string(algo), strconv.Itoa(len(attrs)))
	return append(out, attrs...), nil
}
