package extract

import (
	"strings"
	"testing"

	"imovel-scraper/utils"
)

const aggregatorPage = `<html><body>
<a href="https://imoveis.example.com/apto-centro-101">Apto Centro</a>
<a href="/casa-jardim-202">Casa Jardim</a>
<a href="mailto:corretor@example.com">Email</a>
<a href="tel:+5527999990000">Ligue</a>
<a href="https://www.instagram.com/imobiliaria">Insta</a>
<a href="https://wa.me/5527999990000">WhatsApp</a>
<a href="https://imoveis.example.com/sobre">Sobre</a>
<a href="https://imoveis.example.com/apto-centro-101">Apto Centro repetido</a>
<script>var links = {"url":"https://imoveis.example.com/cobertura-303"};</script>
</body></html>`

func TestLinksFiltersAndDedupes(t *testing.T) {
	seen := utils.NewURLSet()
	links := Links(aggregatorPage, "https://linktr.ee/imobiliaria", seen, 10)

	want := []string{
		"https://imoveis.example.com/apto-centro-101",
		"https://linktr.ee/casa-jardim-202",
		"https://imoveis.example.com/cobertura-303",
	}
	if len(links) != len(want) {
		t.Fatalf("got %d links %v, want %d", len(links), links, len(want))
	}
	for i, w := range want {
		if links[i] != w {
			t.Errorf("links[%d] = %q, want %q", i, links[i], w)
		}
	}
}

func TestLinksNeverReturnsContactOrSocial(t *testing.T) {
	seen := utils.NewURLSet()
	links := Links(aggregatorPage, "https://linktr.ee/imobiliaria", seen, 50)

	for _, l := range links {
		for _, bad := range []string{"mailto:", "tel:", "instagram", "wa.me"} {
			if strings.Contains(l, bad) {
				t.Errorf("blocked link leaked through: %q", l)
			}
		}
	}
}

func TestLinksCap(t *testing.T) {
	seen := utils.NewURLSet()
	links := Links(aggregatorPage, "https://linktr.ee/imobiliaria", seen, 1)
	if len(links) != 1 {
		t.Errorf("cap 1 returned %d links", len(links))
	}
}

func TestLinksRunScopedDedup(t *testing.T) {
	seen := utils.NewURLSet()
	first := Links(aggregatorPage, "https://linktr.ee/imobiliaria", seen, 10)
	second := Links(aggregatorPage, "https://linktr.ee/imobiliaria", seen, 10)

	if len(first) == 0 {
		t.Fatal("first pass found no links")
	}
	if len(second) != 0 {
		t.Errorf("second pass over same page should be fully deduped, got %v", second)
	}
}
