package textenc

import "testing"

func TestDecodeUTF8Untouched(t *testing.T) {
	in := []byte("Matrícula 123")
	out, enc := Decode(in, "ANSI_1252")
	if string(out) != "Matrícula 123" || enc != "UTF-8" {
		t.Errorf("got %q (%s)", out, enc)
	}
}

func TestDecodeDeclaredCodepage(t *testing.T) {
	out, enc := Decode([]byte("Propriet\xe1rio: Jo\xe3o"), "ansi_1252")
	if string(out) != "Proprietário: João" {
		t.Errorf("got %q", out)
	}
	if enc != "ansi_1252" {
		t.Errorf("expected declared codepage, got %s", enc)
	}
}

func TestDecodeWithoutCodepage(t *testing.T) {
	out, enc := Decode([]byte("Ch\xe1cara S\xe3o Jos\xe9 - \xe1rea total do im\xf3vel"), "")
	if string(out) != "Chácara São José - área total do imóvel" {
		t.Errorf("got %q (%s)", out, enc)
	}
}

func TestFold(t *testing.T) {
	cases := map[string]string{
		"Código":       "codigo",
		" LATITUDE ":   "latitude",
		"Descrição":    "descricao",
		"Proprietário": "proprietario",
	}
	for in, want := range cases {
		if got := Fold(in); got != want {
			t.Errorf("Fold(%q) = %q, want %q", in, got, want)
		}
	}
}
