package geo

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/couchcryptid/price-locator/internal/domain"
)

// cepRange maps an inclusive range of 5-digit CEP prefixes to a federative unit.
type cepRange struct {
	from, to int
	region   string
}

// cepRanges follows the Correios prefix allocation, sorted by from.
var cepRanges = []cepRange{
	{1000, 19999, "SP"},
	{20000, 28999, "RJ"},
	{29000, 29999, "ES"},
	{30000, 39999, "MG"},
	{40000, 48999, "BA"},
	{49000, 49999, "SE"},
	{50000, 56999, "PE"},
	{57000, 57999, "AL"},
	{58000, 58999, "PB"},
	{59000, 59999, "RN"},
	{60000, 63999, "CE"},
	{64000, 64999, "PI"},
	{65000, 65999, "MA"},
	{66000, 68899, "PA"},
	{68900, 68999, "AP"},
	{69000, 69299, "AM"},
	{69300, 69399, "RR"},
	{69400, 69899, "AM"},
	{69900, 69999, "AC"},
	{70000, 72799, "DF"},
	{72800, 72999, "GO"},
	{73000, 73699, "DF"},
	{73700, 76799, "GO"},
	{76800, 76999, "RO"},
	{77000, 77999, "TO"},
	{78000, 78899, "MT"},
	{79000, 79999, "MS"},
	{80000, 87999, "PR"},
	{88000, 89999, "SC"},
	{90000, 99999, "RS"},
}

// CEPTable is an offline PostalLookup that answers with the centroid of the
// federative unit owning the CEP prefix.
type CEPTable struct {
	regions map[string]domain.Region
}

// NewCEPTable creates a lookup over the given region catalogue.
func NewCEPTable(regions map[string]domain.Region) *CEPTable {
	return &CEPTable{regions: regions}
}

// LookupPostalCode resolves an 8-digit CEP to its region centroid.
func (t *CEPTable) LookupPostalCode(_ context.Context, cep string) (domain.PostalResult, error) {
	if len(cep) != 8 {
		return domain.PostalResult{}, fmt.Errorf("cep %q: want 8 digits", cep)
	}
	prefix, err := strconv.Atoi(cep[:5])
	if err != nil {
		return domain.PostalResult{}, fmt.Errorf("cep %q: %w", cep, err)
	}

	code, ok := regionForPrefix(prefix)
	if !ok {
		return domain.PostalResult{}, fmt.Errorf("cep %q: prefix not allocated", cep)
	}
	r, ok := t.regions[code]
	if !ok {
		return domain.PostalResult{}, fmt.Errorf("cep %q: %w %s", cep, domain.ErrUnknownRegion, code)
	}

	return domain.PostalResult{
		Lat:         r.Lat,
		Lon:         r.Lon,
		AdminRegion: r.Code,
		Confidence:  0.5,
	}, nil
}

func regionForPrefix(prefix int) (string, bool) {
	i := sort.Search(len(cepRanges), func(i int) bool { return cepRanges[i].to >= prefix })
	if i == len(cepRanges) || prefix < cepRanges[i].from {
		return "", false
	}
	return cepRanges[i].region, true
}
