package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// IndexCounter reports how many points the vector index holds.
type IndexCounter interface {
	Count(ctx context.Context) (int64, error)
}
