package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Region is a Brazilian federative unit with the centroid used for freight.
type Region struct {
	Code string  `json:"code"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Location returns the region centroid as a Location.
func (r Region) Location() Location {
	return Location{Lat: r.Lat, Lon: r.Lon, AdminRegion: r.Code}
}

// products are the commodity ids a search accepts.
var products = []string{
	"acucar",
	"algodao",
	"arroz",
	"cafe",
	"feijao",
	"milho",
	"soja",
	"trigo",
}

// regions holds approximate geographic centroids of the 27 federative units.
var regions = map[string]Region{
	"AC": {Code: "AC", Name: "Acre", Lat: -8.77, Lon: -70.55},
	"AL": {Code: "AL", Name: "Alagoas", Lat: -9.62, Lon: -36.82},
	"AM": {Code: "AM", Name: "Amazonas", Lat: -3.47, Lon: -65.10},
	"AP": {Code: "AP", Name: "Amapá", Lat: 1.41, Lon: -51.77},
	"BA": {Code: "BA", Name: "Bahia", Lat: -12.48, Lon: -41.72},
	"CE": {Code: "CE", Name: "Ceará", Lat: -5.20, Lon: -39.53},
	"DF": {Code: "DF", Name: "Distrito Federal", Lat: -15.83, Lon: -47.86},
	"ES": {Code: "ES", Name: "Espírito Santo", Lat: -19.19, Lon: -40.34},
	"GO": {Code: "GO", Name: "Goiás", Lat: -15.98, Lon: -49.86},
	"MA": {Code: "MA", Name: "Maranhão", Lat: -5.42, Lon: -45.44},
	"MG": {Code: "MG", Name: "Minas Gerais", Lat: -18.10, Lon: -44.38},
	"MS": {Code: "MS", Name: "Mato Grosso do Sul", Lat: -20.51, Lon: -54.54},
	"MT": {Code: "MT", Name: "Mato Grosso", Lat: -12.64, Lon: -55.42},
	"PA": {Code: "PA", Name: "Pará", Lat: -3.79, Lon: -52.48},
	"PB": {Code: "PB", Name: "Paraíba", Lat: -7.28, Lon: -36.72},
	"PE": {Code: "PE", Name: "Pernambuco", Lat: -8.38, Lon: -37.86},
	"PI": {Code: "PI", Name: "Piauí", Lat: -6.60, Lon: -42.28},
	"PR": {Code: "PR", Name: "Paraná", Lat: -24.89, Lon: -51.55},
	"RJ": {Code: "RJ", Name: "Rio de Janeiro", Lat: -22.25, Lon: -42.66},
	"RN": {Code: "RN", Name: "Rio Grande do Norte", Lat: -5.81, Lon: -36.59},
	"RO": {Code: "RO", Name: "Rondônia", Lat: -10.83, Lon: -63.34},
	"RR": {Code: "RR", Name: "Roraima", Lat: 1.99, Lon: -61.33},
	"RS": {Code: "RS", Name: "Rio Grande do Sul", Lat: -30.17, Lon: -53.50},
	"SC": {Code: "SC", Name: "Santa Catarina", Lat: -27.45, Lon: -50.95},
	"SE": {Code: "SE", Name: "Sergipe", Lat: -10.57, Lon: -37.45},
	"SP": {Code: "SP", Name: "São Paulo", Lat: -22.19, Lon: -48.79},
	"TO": {Code: "TO", Name: "Tocantins", Lat: -10.25, Lon: -48.25},
}

// SupportedProducts returns the commodity catalogue in lexical order.
func SupportedProducts() []string {
	return slices.Clone(products)
}

// IsSupportedProduct reports whether id is in the catalogue.
func IsSupportedProduct(id string) bool {
	return slices.Contains(products, id)
}

// ValidateProduct returns ErrUnsupportedProduct, listing the valid ids, when
// id is not in the catalogue.
func ValidateProduct(id string) error {
	if IsSupportedProduct(id) {
		return nil
	}
	return fmt.Errorf("%w: %q; valid products: %s", ErrUnsupportedProduct, id, strings.Join(products, ", "))
}

// Regions returns a copy of the region catalogue keyed by code.
func Regions() map[string]Region {
	out := make(map[string]Region, len(regions))
	for code, r := range regions {
		out[code] = r
	}
	return out
}

// LookupRegion returns the region for code, case-insensitively.
func LookupRegion(code string) (Region, bool) {
	r, ok := regions[strings.ToUpper(strings.TrimSpace(code))]
	return r, ok
}
