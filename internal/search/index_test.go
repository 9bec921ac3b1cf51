package search

import (
	"testing"
)

func doctors() []Document {
	return []Document{
		{ID: "d1", Text: "Cardiology. Heart rhythm specialist. Dr Ana Núñez"},
		{ID: "d2", Text: "Dermatology. Skin and hair. Dr Bo Li"},
		{ID: "d3", Text: "General Medicine. Family care, heart checkups. Dr Cy Park"},
		{ID: "d4", Text: "   "},
	}
}

func TestOptionsAndDefaults(t *testing.T) {
	def := defaultConfig()
	if def.minPrefixRunes != 3 || def.stopwords != nil || def.maxDocs != 0 {
		t.Fatalf("defaultConfig unexpected: %#v", def)
	}

	cfg := def
	WithMinPrefixRunes(5)(&cfg)
	if cfg.minPrefixRunes != 5 {
		t.Fatalf("WithMinPrefixRunes failed: %d", cfg.minPrefixRunes)
	}
	WithMinPrefixRunes(-1)(&cfg) // no-op
	if cfg.minPrefixRunes != 5 {
		t.Fatalf("negative minPrefixRunes should be ignored")
	}

	WithStopwords([]string{"  The ", "", "DR"})(&cfg)
	if _, ok := cfg.stopwords["the"]; !ok {
		t.Fatalf("missing 'the': %#v", cfg.stopwords)
	}
	if _, ok := cfg.stopwords["dr"]; !ok {
		t.Fatalf("missing 'dr': %#v", cfg.stopwords)
	}

	cfg2 := def
	WithStopwords(nil)(&cfg2)
	if cfg2.stopwords != nil {
		t.Fatalf("empty stopwords should remain nil")
	}

	WithMaxDocs(2)(&cfg)
	WithMaxDocs(0)(&cfg) // no-op
	if cfg.maxDocs != 2 {
		t.Fatalf("WithMaxDocs failed: %d", cfg.maxDocs)
	}
}

func TestNewIndex_SkipsEmptyAndCaps(t *testing.T) {
	if n := NewIndex(doctors()).Len(); n != 3 {
		t.Fatalf("Len=%d want 3", n)
	}
	if n := NewIndex(doctors(), WithMaxDocs(2)).Len(); n != 2 {
		t.Fatalf("Len=%d want 2", n)
	}
}

func TestTopK(t *testing.T) {
	idx := NewIndex(doctors(), WithStopwords([]string{"dr"}))

	tests := []struct {
		name  string
		q     string
		k     int
		first string
		n     int
	}{
		{"exact", "dermatology", 0, "d2", 1},
		{"prefix", "cardio", 0, "d1", 1},
		{"accent folded", "NUNEZ", 0, "d1", 1},
		{"shared term ranks both", "heart", 0, "d1", 2},
		{"k caps", "heart", 1, "d1", 1},
		{"short token no prefix", "ca", 0, "", 0},
		{"stopword only", "Dr", 0, "", 0},
		{"blank", "   ", 0, "", 0},
		{"no match", "neurology", 0, "", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := idx.TopK(tc.q, tc.k)
			if len(got) != tc.n {
				t.Fatalf("len=%d want %d (%v)", len(got), tc.n, got)
			}
			if tc.n > 0 && got[0].ID != tc.first {
				t.Fatalf("first=%s want %s (%v)", got[0].ID, tc.first, got)
			}
			for i := 1; i < len(got); i++ {
				if got[i].Score > got[i-1].Score {
					t.Fatalf("not sorted: %v", got)
				}
			}
		})
	}
}

func TestTopK_StableTies(t *testing.T) {
	idx := NewIndex([]Document{
		{ID: "a", Text: "pediatrics"},
		{ID: "b", Text: "pediatrics"},
	})
	got := idx.TopK("pediatrics", 0)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("ties must keep insertion order: %v", got)
	}
}

func TestEmptyIndex(t *testing.T) {
	if got := NewIndex(nil).TopK("x", 3); got != nil {
		t.Fatalf("want nil, got %v", got)
	}
}

func TestNormalize(t *testing.T) {
	if got := normalize("Cardiología ÉTÉ"); got != "cardiologia ete" {
		t.Fatalf("normalize=%q", got)
	}
}
