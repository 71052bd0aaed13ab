package pipeline

import "imovel-scraper/models"

// DefaultSeeds returns the built-in source links used when the links table
// is empty. Aggregator profiles fan out to individual listings; portal
// search pages need a browser because results render client-side.
func DefaultSeeds() []*models.SourceLink {
	return []*models.SourceLink{
		{URL: "https://linktr.ee/imoveisguarapari", Category: "aggregator"},
		{URL: "https://linktr.ee/corretorpraiadomorro", Category: "aggregator"},
		{URL: "https://linktr.ee/enseadaimoveis", Category: "aggregator"},
		{URL: "https://bio.site/imobiliariacentroguarapari", Category: "aggregator"},
		{URL: "https://www.guarapariimoveis.com.br/lancamentos", Category: "portal", UseBrowser: true},
		{URL: "https://www.imoveises.com.br/venda/guarapari", Category: "portal", UseBrowser: true},
	}
}
