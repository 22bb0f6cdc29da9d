// Package domain models the price locator: commodity quotes collected from
// market-data sources, the freight model that moves a quote to the buyer, and
// the ranked choices returned to the caller.
//
// # Locations
//
// Buyer locations arrive as free-form text in one of two shapes:
//
//	"01310-100"        Brazilian CEP (postal code), 8 digits once
//	                   punctuation is stripped.
//	"-23.55, -46.63"   a "lat, lon" pair in decimal degrees (WGS-84).
//
// A pair is only read as coordinates when both tokens parse as floats and fall
// inside [-90,90] and [-180,180]; anything else with exactly 8 digits is tried
// as a CEP. CEPs are resolved through a [PostalLookup] collaborator. The
// offline lookup maps the first five digits to a federative unit using the
// Correios range table and answers with that unit's centroid.
//
// # Regions
//
// Quotes name their origin by federative unit code ("MT", "PR", ...). Each
// region has a fixed centroid used for every distance calculation; see
// [Regions]. A quote whose origin is not in the catalogue still ranks, with
// a conservative estimated freight.
//
// # Freight model
//
//	distance_km = haversine(region centroid, buyer), R = 6371 km
//	cost        = distance_km × fuel price × fuel per km × max(volume/1000, 0.1)
//	lead time   = max(1, floor(distance_km / 500)) days
//
// Unknown regions get {500 km, cost 50, 3 days, method "estimated"}.
//
// # Scoring
//
// Lower composite scores are better:
//
//	price   = min((unit price + freight) / price cap, 1)    cap 200
//	time    = min(lead time / time cap, 1)                  cap 10
//	quality = 1 - quality score
//	score   = w.price·price + w.time·time + w.quality·quality
//
// Weights must sum to 1.0 within 0.01. Ties are broken by supplier id, then
// origin region, so rankings are reproducible.
//
// # Cache keys
//
// Aggregated quotes are cached per commodity and volume bucket, where the
// bucket is floor(volume/1000): "soja|1" holds every search for 1000–1999
// units of soybean.
package domain
