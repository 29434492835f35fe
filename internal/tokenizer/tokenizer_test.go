package tokenizer

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", []string{}},
		{"only punctuation", " -- ,. ", []string{}},
		{"simple title", "The Eigenfactor Metrics", []string{"the", "eigenfactor", "metrics"}},
		{"punctuation and digits", "COVID-19: a review (2020)", []string{"covid", "19", "a", "review", "2020"}},
		{"unicode letters kept", "Résumé of Ångström units", []string{"résumé", "of", "ångström", "units"}},
		{"repeated tokens kept in order", "to be or not to be", []string{"to", "be", "or", "not", "to", "be"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestSortedJoin(t *testing.T) {
	a := SortedJoin("Metrics, The Eigenfactor")
	b := SortedJoin("the eigenfactor METRICS")
	if a != b {
		t.Errorf("SortedJoin should ignore order and case: %q != %q", a, b)
	}
	if a != "eigenfactor metrics the" {
		t.Errorf("SortedJoin() = %q, want %q", a, "eigenfactor metrics the")
	}
}

func TestUnique(t *testing.T) {
	got := Unique("to be or not to be")
	want := []string{"to", "be", "or", "not"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Unique() = %v, want %v", got, want)
	}
}
