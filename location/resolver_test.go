package location

import (
	"fmt"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
)

func sampleNodes() []Node {
	return []Node{
		{ID: "1", Name: "Quality"},
		{ID: "2", ParentID: "1", Name: "Tower 4"},
		{ID: "3", ParentID: "2", Name: "Module 2"},
		{ID: "4", ParentID: "3", Name: "101"},
		{ID: "10", Name: "Tower 5"},
		{ID: "11", ParentID: "10", Name: "Floor 3"},
		{ID: "20", ParentID: "99", Name: "Orphan"},
	}
}

func TestResolverPath(t *testing.T) {
	r := NewResolver(sampleNodes(), ResolverOptions{})

	tests := []struct {
		name       string
		locationID string
		want       string
	}{
		{"full chain under Quality root", "4", "Quality/Tower 4/Module 2/101"},
		{"root itself", "1", "Quality"},
		{"synthetic root is added", "11", "Quality/Tower 5/Floor 3"},
		{"missing parent stops the walk", "20", "Orphan"},
		{"unknown location", "404", "Unknown"},
		{"empty id", "", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Path(tt.locationID); got != tt.want {
				t.Errorf("Path(%q) = %q, want %q", tt.locationID, got, tt.want)
			}
		})
	}
}

func TestResolverIsIdempotent(t *testing.T) {
	r := NewResolver(sampleNodes(), ResolverOptions{})
	first := r.Path("4")
	for i := 0; i < 3; i++ {
		if got := r.Path("4"); got != first {
			t.Fatalf("Path() changed between calls: %q vs %q", first, got)
		}
	}
}

func TestResolverCycleTerminates(t *testing.T) {
	nodes := []Node{
		{ID: "a", ParentID: "b", Name: "A"},
		{ID: "b", ParentID: "c", Name: "B"},
		{ID: "c", ParentID: "a", Name: "C"},
	}
	r := NewResolver(nodes, ResolverOptions{})

	segments := r.Segments("a")
	if len(segments) != DefaultMaxDepth {
		t.Fatalf("cyclic walk should stop after %d hops, got %d segments", DefaultMaxDepth, len(segments))
	}
	if segments[len(segments)-1] != "A" {
		t.Errorf("leaf must be the last segment, got %v", segments)
	}
}

func TestResolverSelfParent(t *testing.T) {
	r := NewResolver([]Node{{ID: "x", ParentID: "x", Name: "Loop"}}, ResolverOptions{MaxDepth: 3})
	if got := r.Path("x"); got != "Loop/Loop/Loop" {
		t.Errorf("Path() = %q, want depth-limited path", got)
	}
}

// TestResolverRandomGraphs проверяет завершение и форму пути на случайных графах
func TestResolverRandomGraphs(t *testing.T) {
	faker := gofakeit.New(42)

	for round := 0; round < 50; round++ {
		count := faker.Number(1, 40)
		nodes := make([]Node, count)
		for i := range nodes {
			parent := ""
			if faker.Bool() {
				parent = fmt.Sprintf("n%d", faker.Number(0, count+5))
			}
			nodes[i] = Node{ID: fmt.Sprintf("n%d", i), ParentID: parent, Name: faker.Word()}
		}

		r := NewResolver(nodes, ResolverOptions{})
		for i := 0; i < count+3; i++ {
			id := fmt.Sprintf("n%d", i)
			segments := r.Segments(id)
			if len(segments) == 0 {
				t.Fatalf("Segments(%q) returned empty path", id)
			}
			if len(segments) > DefaultMaxDepth+1 {
				t.Fatalf("Segments(%q) exceeded depth guard: %d", id, len(segments))
			}
			path := r.Path(id)
			if path != "Unknown" && strings.Contains(path, "//") {
				t.Errorf("Path(%q) is malformed: %q", id, path)
			}
		}
	}
}
