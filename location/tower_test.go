package location

import (
	"strings"
	"testing"
)

func towerFourSplit() *SplitRule {
	return &SplitRule{
		Tower:       "Tower 4",
		ModuleIndex: 2,
		Ranges: []ModuleRange{
			{Suffix: "B", Min: 1, Max: 4},
			{Suffix: "A", Min: 5, Max: 8},
		},
	}
}

func TestTowerName(t *testing.T) {
	e := NewTowerExtractor(towerFourSplit())

	tests := []struct {
		name string
		path string
		want string
	}{
		{"module in B range", "Quality/Tower 4/Module 2/101", "Tower 4(B)"},
		{"module on B upper bound", "Quality/Tower 4/Module 4", "Tower 4(B)"},
		{"module in A range", "Quality/Tower 4/Module 7/702", "Tower 4(A)"},
		{"module not numeric", "Quality/Tower 4/Podium/P1", "Tower 4"},
		{"module outside ranges", "Quality/Tower 4/Module 12", "Tower 4"},
		{"tower without module segment", "Quality/Tower 4", "Tower 4"},
		{"other tower verbatim", "Quality/Tower 5/Module 2", "Tower 5"},
		{"root only", "Quality", "Unknown"},
		{"unknown path", "Unknown", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.TowerName(strings.Split(tt.path, PathSeparator)); got != tt.want {
				t.Errorf("TowerName(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestTowerNameWithoutSplit(t *testing.T) {
	e := NewTowerExtractor(nil)
	if got := e.TowerName(strings.Split("Quality/Tower 4/Module 2/101", PathSeparator)); got != "Tower 4" {
		t.Errorf("TowerName() = %q, want verbatim tower", got)
	}
}

func TestCanonicalKey(t *testing.T) {
	tests := []struct {
		name     string
		wantKey  string
		wantBase string
	}{
		{"Tower 4(B)", "T4B", "T4"},
		{"Tower 4 (a)", "T4A", "T4"},
		{"TOWER-05", "T5", "T5"},
		{"T5", "T5", "T5"},
		{"t7b", "T7B", "T7"},
		{"Tower 10 Finishing Tracker", "T10", "T10"},
		{"Tower 5 Block Work", "T5", "T5"},
		{"Clubhouse", "Clubhouse", "Clubhouse"},
		{"  Amenity Block ", "Amenity Block", "Amenity Block"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalKey(tt.name); got != tt.wantKey {
				t.Errorf("CanonicalKey(%q) = %q, want %q", tt.name, got, tt.wantKey)
			}
			if got := BaseKey(tt.name); got != tt.wantBase {
				t.Errorf("BaseKey(%q) = %q, want %q", tt.name, got, tt.wantBase)
			}
		})
	}
}

// TestSplitTowerScenario путь Tower 4 / Module 2 сводится к ключу T4B
func TestSplitTowerScenario(t *testing.T) {
	r := NewResolver([]Node{
		{ID: "1", Name: "Quality"},
		{ID: "2", ParentID: "1", Name: "Tower 4"},
		{ID: "3", ParentID: "2", Name: "Module 2"},
		{ID: "4", ParentID: "3", Name: "101"},
	}, ResolverOptions{})
	e := NewTowerExtractor(towerFourSplit())

	tower := e.TowerName(r.Segments("4"))
	if tower != "Tower 4(B)" {
		t.Fatalf("TowerName() = %q, want Tower 4(B)", tower)
	}
	if BaseKey(tower) != "T4" || CanonicalKey(tower) != "T4B" {
		t.Errorf("keys = %q/%q, want T4/T4B", BaseKey(tower), CanonicalKey(tower))
	}
}
