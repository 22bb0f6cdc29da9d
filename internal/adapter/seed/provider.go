// Package seed provides an offline SourceProvider backed by a fixed regional
// price table. It stands in for live market data in development and tests.
package seed

import (
	"context"
	"slices"

	"github.com/couchcryptid/price-locator/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Name is the provider name reported on every seeded quote.
const Name = "seed"

// Entry is one seeded regional offer.
type Entry struct {
	Region   string
	City     string
	Price    float64
	Quality  float64
	Supplier string
}

// DefaultCatalog returns the built-in price table keyed by commodity id.
func DefaultCatalog() map[string][]Entry {
	return map[string][]Entry{
		"soja": {
			{"MT", "Sorriso", 130, 0.80, "coop-sorriso"},
			{"BA", "Luís Eduardo Magalhães", 135, 0.75, "oeste-baiano-graos"},
			{"MS", "Dourados", 138, 0.78, "dourados-agro"},
			{"GO", "Rio Verde", 140, 0.82, "comigo-rio-verde"},
			{"PR", "Cascavel", 148, 0.88, "coopavel"},
			{"MG", "Uberlândia", 150, 0.85, "triangulo-graos"},
			{"RS", "Passo Fundo", 155, 0.86, "cotrijal"},
			{"SP", "Ribeirão Preto", 170, 0.90, "mogiana-cereais"},
		},
		"milho": {
			{"MT", "Sorriso", 52, 0.78, "coop-sorriso"},
			{"GO", "Rio Verde", 58, 0.80, "comigo-rio-verde"},
			{"MS", "Dourados", 56, 0.77, "dourados-agro"},
			{"PR", "Cascavel", 62, 0.85, "coopavel"},
			{"SP", "Ribeirão Preto", 68, 0.86, "mogiana-cereais"},
		},
		"cafe": {
			{"MG", "Varginha", 1180, 0.92, "sul-de-minas-cafe"},
			{"SP", "Franca", 1210, 0.90, "alta-mogiana"},
			{"ES", "Linhares", 960, 0.74, "capixaba-conilon"},
			{"BA", "Vitória da Conquista", 1050, 0.82, "planalto-cafe"},
		},
		"acucar": {
			{"SP", "Sertãozinho", 138, 0.88, "usina-sertaozinho"},
			{"MG", "Uberaba", 142, 0.85, "triangulo-acucar"},
			{"GO", "Goianésia", 144, 0.83, "goianesia-bioenergia"},
			{"PR", "Maringá", 147, 0.84, "norte-parana-acucar"},
			{"AL", "Maceió", 152, 0.80, "alagoas-usinas"},
		},
		"algodao": {
			{"MT", "Campo Verde", 128, 0.86, "campo-verde-fibras"},
			{"BA", "Barreiras", 131, 0.84, "oeste-baiano-graos"},
			{"GO", "Chapadão do Céu", 134, 0.83, "chapadao-algodao"},
		},
		"arroz": {
			{"RS", "Uruguaiana", 92, 0.87, "fronteira-arroz"},
			{"SC", "Turvo", 98, 0.85, "sul-catarinense-arroz"},
			{"MT", "Sinop", 104, 0.78, "nortao-cereais"},
			{"TO", "Formoso do Araguaia", 101, 0.76, "araguaia-arroz"},
		},
		"feijao": {
			{"PR", "Ponta Grossa", 185, 0.86, "campos-gerais-feijao"},
			{"MG", "Unaí", 190, 0.84, "noroeste-mineiro"},
			{"GO", "Cristalina", 188, 0.83, "cristalina-irrigados"},
			{"BA", "Irecê", 196, 0.78, "irece-graos"},
		},
		"trigo": {
			{"RS", "Cruz Alta", 78, 0.82, "cruz-alta-trigo"},
			{"PR", "Guarapuava", 82, 0.86, "agraria-guarapuava"},
			{"SC", "Campos Novos", 85, 0.80, "campos-novos-cereais"},
		},
	}
}

// Provider serves quotes from a seeded catalogue, stamped with the clock's now.
type Provider struct {
	catalog map[string][]Entry
	clock   clockwork.Clock
}

// New creates a Provider over DefaultCatalog.
func New(clock clockwork.Clock) *Provider {
	return NewWithCatalog(DefaultCatalog(), clock)
}

// NewWithCatalog creates a Provider over a custom catalogue.
func NewWithCatalog(catalog map[string][]Entry, clock clockwork.Clock) *Provider {
	return &Provider{catalog: catalog, clock: domain.ClockOrReal(clock)}
}

func (p *Provider) Name() string { return Name }

// Collect returns one quote per seeded entry for commodityID.
func (p *Provider) Collect(ctx context.Context, commodityID string) ([]domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := p.catalog[commodityID]
	now := p.clock.Now().UTC()
	quotes := make([]domain.Quote, 0, len(entries))
	for _, e := range entries {
		quotes = append(quotes, domain.Quote{
			CommodityID:  commodityID,
			OriginRegion: e.Region,
			OriginCity:   e.City,
			UnitPrice:    e.Price,
			QualityScore: e.Quality,
			SupplierID:   e.Supplier,
			CollectedAt:  now,
			SourceName:   Name,
			Available:    true,
		})
	}
	return quotes, nil
}

// Commodities lists the seeded commodity ids in lexical order.
func (p *Provider) Commodities() []string {
	ids := make([]string, 0, len(p.catalog))
	for id := range p.catalog {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
