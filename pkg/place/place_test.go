package place

import "testing"

func TestTypeRank(t *testing.T) {
	ordered := []Type{City, Town, Borough, Village, Hamlet, Locality, BusStop, MotorwayJunction}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Rank() <= ordered[i].Rank() {
			t.Errorf("expected %s (%d) to outrank %s (%d)",
				ordered[i-1], ordered[i-1].Rank(), ordered[i], ordered[i].Rank())
		}
	}
	if got := Type("peak").Rank(); got != 0 {
		t.Errorf("unknown type: expected rank 0, got %d", got)
	}
}

func TestImportance(t *testing.T) {
	r := Record{ID: "n1", Name: "Birkenhain", Type: Village, Population: 120}
	pop, rank := r.Importance()
	if pop != 120 || rank != Village.Rank() {
		t.Errorf("expected (120, %d), got (%d, %d)", Village.Rank(), pop, rank)
	}
}
