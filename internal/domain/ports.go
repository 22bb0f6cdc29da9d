package domain

import "context"

// PostalResult is what a postal lookup knows about a CEP.
type PostalResult struct {
	Lat         float64
	Lon         float64
	City        string
	AdminRegion string
	Confidence  float64 // 0.0–1.0 provider confidence score
}

// PostalLookup resolves Brazilian postal codes to coordinates.
type PostalLookup interface {
	// LookupPostalCode resolves an 8-digit CEP (digits only).
	LookupPostalCode(ctx context.Context, cep string) (PostalResult, error)
}

// SourceProvider collects quotes for a commodity from one upstream source.
type SourceProvider interface {
	Name() string
	Collect(ctx context.Context, commodityID string) ([]Quote, error)
}

// QuoteCache stores aggregated quote snapshots. Expiry is the store's concern.
type QuoteCache interface {
	Get(ctx context.Context, key string) ([]Quote, bool, error)
	Set(ctx context.Context, key string, quotes []Quote) error
	Clear(ctx context.Context) error
}

// ResultPublisher receives successful search results for auditing.
type ResultPublisher interface {
	Publish(ctx context.Context, result SearchResult) error
}
