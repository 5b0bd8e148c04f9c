package health

import "context"

// StorePinger checks profile store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// EncoderChecker checks embedding encoder availability.
type EncoderChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexSizer reports how many vectors an index currently holds.
type IndexSizer interface {
	Len() int
}
