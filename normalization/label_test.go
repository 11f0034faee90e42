package normalization

import "testing"

func TestCleanLabel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"spaces", "  Slab   Casting ", "Slab Casting"},
		{"em dash", "EL—First Fix", "EL-First Fix"},
		{"en dash", "UP–First Fix", "UP-First Fix"},
		{"quotes", "“Door” Frames", `"Door" Frames`},
		{"fullwidth", "ＥＬ-First Fix", "EL-First Fix"},
		{"case kept", "Wall CONDUTING", "Wall CONDUTING"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanLabel(tt.input); got != tt.want {
				t.Errorf("CleanLabel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLabelKeyIgnoresCase(t *testing.T) {
	if LabelKey("Wall Conduting") != LabelKey(" wall  CONDUTING") {
		t.Error("expected equal keys for labels differing only in case and spacing")
	}
	if LabelKey("Wall Conduting") == LabelKey("Slab Conduting") {
		t.Error("expected different keys for different labels")
	}
}
