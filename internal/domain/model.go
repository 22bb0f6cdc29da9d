package domain

import (
	"fmt"
	"time"
)

// Freight methods.
const (
	MethodRoad      = "road"
	MethodEstimated = "estimated"
)

// Location is a normalized buyer location.
type Location struct {
	PostalCode  string  `json:"postal_code,omitempty"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	City        string  `json:"city,omitempty"`
	AdminRegion string  `json:"admin_region,omitempty"`
}

// Valid reports whether the coordinates are within WGS-84 bounds.
func (l Location) Valid() bool {
	return ValidCoordinates(l.Lat, l.Lon)
}

// ValidCoordinates reports whether lat is in [-90,90] and lon in [-180,180].
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func (l Location) String() string {
	if l.PostalCode != "" {
		return l.PostalCode
	}
	return fmt.Sprintf("%.4f,%.4f", l.Lat, l.Lon)
}

// Quote is a single source's price offer for a commodity from one region.
type Quote struct {
	CommodityID  string    `json:"commodity_id"`
	OriginRegion string    `json:"origin_region"`
	OriginCity   string    `json:"origin_city,omitempty"`
	UnitPrice    float64   `json:"unit_price"`
	QualityScore float64   `json:"quality_score"`
	SupplierID   string    `json:"supplier_id"`
	CollectedAt  time.Time `json:"collected_at"`
	SourceName   string    `json:"source_name"`
	Available    bool      `json:"available"`
}

// Validate checks the invariants a provider must honor.
func (q Quote) Validate() error {
	if q.UnitPrice <= 0 {
		return fmt.Errorf("quote %s/%s: unit price must be positive, got %g", q.SourceName, q.SupplierID, q.UnitPrice)
	}
	if q.QualityScore < 0 || q.QualityScore > 1 {
		return fmt.Errorf("quote %s/%s: quality score %g out of [0,1]", q.SourceName, q.SupplierID, q.QualityScore)
	}
	if q.OriginRegion == "" {
		return fmt.Errorf("quote %s/%s: missing origin region", q.SourceName, q.SupplierID)
	}
	return nil
}

// Freight is the transport estimate from an origin region to the buyer.
type Freight struct {
	Origin       string   `json:"origin"`
	Destination  Location `json:"destination"`
	DistanceKm   float64  `json:"distance_km"`
	Cost         float64  `json:"cost"`
	LeadTimeDays int      `json:"lead_time_days"`
	Method       string   `json:"method"`
}

// Estimated reports whether the freight came from the fallback defaults.
func (f Freight) Estimated() bool {
	return f.Method == MethodEstimated
}

// Choice is one ranked sourcing option.
type Choice struct {
	OriginLabel    string  `json:"origin_label"`
	OriginRegion   string  `json:"origin_region"`
	UnitPrice      float64 `json:"unit_price"`
	FreightCost    float64 `json:"freight_cost"`
	TotalCost      float64 `json:"total_cost"`
	DistanceKm     float64 `json:"distance_km"`
	LeadTimeDays   int     `json:"lead_time_days"`
	QualityScore   float64 `json:"quality_score"`
	CompositeScore float64 `json:"composite_score"`
	SupplierID     string  `json:"supplier_id"`
	SourceName     string  `json:"source_name"`
	Confidence     float64 `json:"confidence"`
	Estimated      bool    `json:"estimated"`
}

// SearchRequest is a price search. Nil Volume and Weights take defaults.
type SearchRequest struct {
	BuyerLocation string   `json:"buyer_location"`
	CommodityID   string   `json:"commodity_id"`
	Volume        *float64 `json:"volume,omitempty"`
	Weights       *Weights `json:"weights,omitempty"`
}

// SearchResult is the ranked answer to a SearchRequest.
type SearchResult struct {
	SearchID          string    `json:"search_id"`
	CommodityID       string    `json:"commodity_id"`
	BuyerLocation     Location  `json:"buyer_location"`
	SearchTimestamp   time.Time `json:"search_timestamp"`
	WeightsUsed       Weights   `json:"weights_used"`
	Volume            float64   `json:"volume"`
	Choices           []Choice  `json:"choices"`
	BestChoice        *Choice   `json:"best_choice"`
	TotalOptionsFound int       `json:"total_options_found"`
	Partial           bool      `json:"partial,omitempty"`
}

// QuoteSet is the outcome of one aggregation.
type QuoteSet struct {
	Quotes   []Quote
	CacheHit bool
	// Partial is set when the caller's deadline cut the fan-out short.
	Partial bool
}
