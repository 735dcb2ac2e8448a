package ingest

import (
	"testing"

	"github.com/paulmach/orb/geojson"
)

func TestExtractAttributesMatricula(t *testing.T) {
	cases := map[string]string{
		"Matrícula: 4.561":     "4.561",
		"MATRICULA Nº 12.345":  "12.345",
		"matr. n° 1234":        "1234",
		"Registro: 998-A":      "998",
		"Registro nº 7.001/03": "7.001/03",
	}
	for in, want := range cases {
		a := ExtractAttributes(in)
		if a.Matricula == nil || *a.Matricula != want {
			t.Errorf("%q: expected matricula %q, got %v", in, want, a.Matricula)
		}
	}
}

func TestExtractAttributesAreaHectares(t *testing.T) {
	a := ExtractAttributes("Área: 12.500,75 ha")
	if a.Area == nil || *a.Area != 125007500 {
		t.Fatalf("expected 125007500 m², got %v", a.Area)
	}

	cases := map[string]float64{
		"área: 12,5 ha":         125000,
		"12,5 hectares":         125000,
		"AREA TOTAL = 1.234 m²": 1234,
		"Área: 350,25 m2":       350.25,
		"Área: 2.5 ha":          25000,
	}
	for in, want := range cases {
		a := ExtractAttributes(in)
		if a.Area == nil || *a.Area != want {
			t.Errorf("%q: expected %v, got %v", in, want, a.Area)
		}
	}
}

func TestExtractAttributesPerimetro(t *testing.T) {
	cases := map[string]float64{
		"perímetro: 500 m":        500,
		"Perimetro = 1.250,40 m":  1250.40,
		"PERÍMETRO TOTAL: 2,5 km": 2500,
	}
	for in, want := range cases {
		a := ExtractAttributes(in)
		if a.Perimetro == nil || *a.Perimetro != want {
			t.Errorf("%q: expected %v, got %v", in, want, a.Perimetro)
		}
	}
}

func TestExtractAttributesNomeAndProprietario(t *testing.T) {
	tests := []struct {
		in, nome, dono string
	}{
		{in: "Fazenda Boa Vista", nome: "Boa Vista"},
		{in: "SÍTIO São José", nome: "São José"},
		{in: "Chácara Recanto Verde, Matrícula 55", nome: "Recanto Verde"},
		{in: "Lote 12", nome: "12"},
		{in: "Gleba B - Proprietário: Maria Souza", nome: "B", dono: "Maria Souza"},
		{in: "Titular: João da Silva", dono: "João da Silva"},
		{in: "Nome: Estância Ouro Fino", nome: "Estância Ouro Fino"},
		{in: "Fazenda Santa Rita Matrícula 10", nome: "Santa Rita"},
	}
	for _, tt := range tests {
		a := ExtractAttributes(tt.in)
		if got := deref(a.Nome); got != tt.nome {
			t.Errorf("%q: nome = %q, want %q", tt.in, got, tt.nome)
		}
		if got := deref(a.Proprietario); got != tt.dono {
			t.Errorf("%q: proprietario = %q, want %q", tt.in, got, tt.dono)
		}
	}
}

func TestExtractAttributesNothing(t *testing.T) {
	if a := ExtractAttributes("Cerca de arame"); !a.Empty() {
		t.Errorf("expected no attributes, got %+v", a)
	}
}

func TestMergeAttributesExistingWins(t *testing.T) {
	props := geojson.Properties{PropNome: "Primeiro", "layer": "LIMITE"}
	out := AssignAttributes("Fazenda Segundo, Matrícula: 9", props)

	if out[PropNome] != "Primeiro" {
		t.Errorf("existing nome must win, got %v", out[PropNome])
	}
	if out[PropMatricula] != "9" {
		t.Errorf("new matricula expected, got %v", out[PropMatricula])
	}
	if _, ok := props[PropMatricula]; ok {
		t.Error("input properties must not be modified")
	}

	nilValued := geojson.Properties{PropNome: nil}
	if got := AssignAttributes("Sítio Novo", nilValued)[PropNome]; got != "Novo" {
		t.Errorf("nil value counts as absent, got %v", got)
	}
}

func TestParseBrazilianNumber(t *testing.T) {
	cases := map[string]float64{
		"12.500,75": 12500.75,
		"4.561":     4561,
		"1.234.567": 1234567,
		"12.5":      12.5,
		"0,5":       0.5,
		"700":       700,
	}
	for in, want := range cases {
		got, ok := ParseBrazilianNumber(in)
		if !ok || got != want {
			t.Errorf("ParseBrazilianNumber(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
