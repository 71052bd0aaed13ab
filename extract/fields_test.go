package extract

import (
	"testing"

	"imovel-scraper/models"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		text string
		want float64 // 0 means nil expected
	}{
		{"Apartamento à venda por R$ 450.000,00 no Centro", 450000},
		{"Valor: R$ 1.200.000", 1200000},
		{"price $350,000.00 negotiable", 350000},
		{"sem preço informado", 0},
		{"R$ 99.000.000,00", 0}, // above plausibility ceiling
		{"R$ 0,00", 0},
	}

	for _, tt := range tests {
		got := Price(tt.text)
		if tt.want == 0 {
			if got != nil {
				t.Errorf("Price(%q) = %v, want nil", tt.text, *got)
			}
			continue
		}
		if got == nil || *got != tt.want {
			t.Errorf("Price(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestArea(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"Área privativa de 85 m²", 85},
		{"120,5 m² de área total", 120.5},
		{"65 m2 com varanda", 65},
		{"50000 m² de fazenda", 0}, // out of range
		{"nenhuma área", 0},
	}

	for _, tt := range tests {
		got := Area(tt.text)
		if tt.want == 0 {
			if got != nil {
				t.Errorf("Area(%q) = %v, want nil", tt.text, *got)
			}
			continue
		}
		if got == nil || *got != tt.want {
			t.Errorf("Area(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestCountFields(t *testing.T) {
	text := "Apartamento com 3 quartos sendo 1 suíte, 2 banheiros e 2 vagas de garagem"

	if got := Bedrooms(text); got == nil || *got != 3 {
		t.Errorf("Bedrooms = %v, want 3", got)
	}
	if got := Suites(text); got == nil || *got != 1 {
		t.Errorf("Suites = %v, want 1", got)
	}
	if got := Bathrooms(text); got == nil || *got != 2 {
		t.Errorf("Bathrooms = %v, want 2", got)
	}
	if got := Parking(text); got == nil || *got != 2 {
		t.Errorf("Parking = %v, want 2", got)
	}
}

func TestCountFieldsOutOfRangeOmitted(t *testing.T) {
	if got := Bedrooms("prédio com 50 quartos"); got != nil {
		t.Errorf("Bedrooms out of range should be omitted, got %v", *got)
	}
	if got := Parking("estacionamento com 0 vagas"); got != nil {
		t.Errorf("zero parking should be omitted, got %v", *got)
	}
}

func TestPropertyTypeOf(t *testing.T) {
	tests := []struct {
		text string
		want models.PropertyType
	}{
		{"Linda cobertura duplex com vista", models.TypePenthouse},
		{"Apartamento 2 quartos no Centro", models.TypeApartment},
		{"Casa com quintal em condomínio", models.TypeHouse},
		{"Sala comercial no centro empresarial", models.TypeCommercial},
		{"Terreno de 500m² pronto para construir", models.TypeLand},
		{"imóvel novo bem localizado", models.TypeApartment}, // default
	}

	for _, tt := range tests {
		if got := PropertyTypeOf(tt.text); got != tt.want {
			t.Errorf("PropertyTypeOf(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		text string
		want models.PropertyStatus
	}{
		{"Empreendimento em construção, entrega 2027", models.StatusConstruction},
		{"Lançamento na planta", models.StatusConstruction},
		{"Pronto para morar", models.StatusAvailable},
		{"apartamento amplo e arejado", models.StatusAvailable},
	}

	for _, tt := range tests {
		if got := StatusOf(tt.text); got != tt.want {
			t.Errorf("StatusOf(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestStreetAddress(t *testing.T) {
	got := StreetAddress("Localizado na Rua das Palmeiras, 123 próximo à praia")
	if got != "Rua das Palmeiras, 123" {
		t.Errorf("StreetAddress = %q", got)
	}
}

func TestFurnished(t *testing.T) {
	if got := Furnished("apartamento mobiliado"); got == nil || !*got {
		t.Errorf("Furnished(mobiliado) = %v, want true", got)
	}
	if got := Furnished("entregue sem mobília"); got == nil || *got {
		t.Errorf("Furnished(sem mobília) = %v, want false", got)
	}
	if got := Furnished("apartamento amplo"); got != nil {
		t.Errorf("Furnished(neutral) = %v, want nil", got)
	}
}

func TestFeatures(t *testing.T) {
	text := "Condomínio com piscina, academia e churrasqueira. Aceita pet!"

	// Tags come out in table order, and repeated calls never reorder them.
	want := []string{"piscina", "academia", "churrasqueira", "aceita pets"}
	for run := 0; run < 3; run++ {
		feats := Features(text)
		if len(feats) != len(want) {
			t.Fatalf("Features = %v, want %v", feats, want)
		}
		for i, f := range feats {
			if f != want[i] {
				t.Errorf("run %d: feats[%d] = %q, want %q", run, i, f, want[i])
			}
		}
	}
}

func TestParseBRFloat(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"450.000,00", 450000},
		{"1.200.000", 1200000},
		{"65,5", 65.5},
		{"1,234.56", 1234.56},
		{"85", 85},
	}
	for _, tt := range tests {
		got, err := parseBRFloat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("parseBRFloat(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}
