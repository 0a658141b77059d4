package generator

import (
	"testing"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

func testSpace() *models.Space {
	return &models.Space{
		Varying: []models.VaryingParameter{
			{Name: "x0", LowerBound: 0, UpperBound: 15},
			{Name: "x1", LowerBound: 0, UpperBound: 15},
		},
		Objectives: []models.Objective{{Name: "f", Minimize: true}},
	}
}

func TestDefaultExplorer(t *testing.T) {
	explorer := NewDefaultExplorer()
	space := testSpace()

	neighbors := explorer.GenerateNeighbors(models.Point{"x0": 5, "x1": 5}, space, 1.0)
	if len(neighbors) != 4 {
		t.Fatalf("expected 4 neighbors (2 parameters * 2 directions), got %d", len(neighbors))
	}
	for _, n := range neighbors {
		if err := space.Contains(n); err != nil {
			t.Fatalf("neighbor outside space: %v", err)
		}
		moved := 0
		if n["x0"] != 5 {
			moved++
		}
		if n["x1"] != 5 {
			moved++
		}
		if moved != 1 {
			t.Fatalf("expected exactly one parameter to move, got %v", n)
		}
	}
	if neighbors[0]["x0"] != 6.5 {
		t.Fatalf("expected step of 10%% of the range, got %v", neighbors[0])
	}
}

func TestExplorerAtBoundDropsCollapsedNeighbors(t *testing.T) {
	neighbors := NewDefaultExplorer().GenerateNeighbors(models.Point{"x0": 0, "x1": 15}, testSpace(), 1.0)
	if len(neighbors) != 2 {
		t.Fatalf("expected 2 neighbors at the corner, got %d", len(neighbors))
	}
}

func TestExplorerIntegerStep(t *testing.T) {
	space := &models.Space{
		Varying:    []models.VaryingParameter{{Name: "n", LowerBound: 1, UpperBound: 8, Type: models.ParameterTypeInt}},
		Objectives: []models.Objective{{Name: "f"}},
	}
	neighbors := NewAggressiveExplorer().GenerateNeighbors(models.Point{"n": 4}, space, 0.01)
	if len(neighbors) != 2 || neighbors[0]["n"] != 6 || neighbors[1]["n"] != 2 {
		t.Fatalf("expected integer neighbors 6 and 2, got %v", neighbors)
	}
}

func TestExplorerByName(t *testing.T) {
	for _, name := range []string{"default", "conservative", "aggressive"} {
		e, ok := ExplorerByName(name)
		if !ok || e.Name() != name {
			t.Fatalf("expected explorer %s", name)
		}
	}
	if _, ok := ExplorerByName("wild"); ok {
		t.Fatalf("expected unknown explorer")
	}
	small := NewConservativeExplorer().GenerateNeighbors(models.Point{"x0": 5, "x1": 5}, testSpace(), 1.0)
	if small[0]["x0"] != 5.75 {
		t.Fatalf("expected conservative step of 0.75, got %v", small[0])
	}
}
