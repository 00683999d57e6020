package vector

import "github.com/kailas-cloud/vecprep/internal/db"

// VectorConfig holds the vector field parameters of the index.
type VectorConfig struct {
	Dimension   int // 0 means taken from the first saved batch
	Algorithm   db.VectorAlgorithm
	Distance    db.DistanceMetric
	M           int
	EFConstruct int
}

func (r *Repo) prefix() string {
	return r.keyPrefix + r.index + ":"
}

func (r *Repo) pointKey(rowKey string) string {
	return r.prefix() + rowKey
}

// buildIndex describes the hash index holding the feature vectors.
func (r *Repo) buildIndex(dim int) *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:     r.index,
		Prefixes: []string{r.prefix()},
		Fields: []db.IndexField{
			{Name: fieldKey, Type: db.IndexFieldTag},
			{
				Name:              fieldVector,
				Alias:             vectorAlias,
				Type:              db.IndexFieldVector,
				VectorAlgo:        r.vec.Algorithm,
				VectorDim:         dim,
				VectorDistance:    r.vec.Distance,
				VectorM:           r.vec.M,
				VectorEFConstruct: r.vec.EFConstruct,
			},
		},
	}
}
