package memory

import (
	"testing"
)

func tempChromemStore(t *testing.T, dim int) (*ChromemStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewChromemStore(dir, dim)
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	return s, dir
}

func TestChromemStore_RoundTrip(t *testing.T) {
	s, _ := tempChromemStore(t, 2)

	records := []Record{
		{Context: []float64{1, 0}, Arm: 0, Reward: 1.0, Metadata: map[string]string{"k": "v"}},
		{Context: []float64{0.5, 0.5}, Arm: 1, Reward: -0.25},
	}
	for _, rec := range records {
		if err := s.Add(rec); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	got, err := s.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	for i, rec := range got {
		if rec.Seq != int64(i+1) {
			t.Fatalf("record %d: seq = %d", i, rec.Seq)
		}
		if rec.Arm != records[i].Arm || rec.Reward != records[i].Reward {
			t.Fatalf("record %d: arm/reward mismatch: %+v", i, rec)
		}
		for j, v := range records[i].Context {
			if rec.Context[j] != v {
				t.Fatalf("record %d: context[%d] = %g, want %g", i, j, rec.Context[j], v)
			}
		}
	}
	if got[0].Metadata["k"] != "v" {
		t.Fatalf("metadata lost: %v", got[0].Metadata)
	}
}

func TestChromemStore_PersistsAcrossReopen(t *testing.T) {
	s, dir := tempChromemStore(t, 2)
	if err := s.Add(Record{Context: []float64{1, 0}, Arm: 1, Reward: 0.75}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	s2, err := NewChromemStore(dir, 2)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := s2.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(got) != 1 || got[0].Arm != 1 || got[0].Reward != 0.75 {
		t.Fatalf("unexpected records after reopen: %+v", got)
	}

	// Appending after reopen continues the sequence
	if err := s2.Add(Record{Context: []float64{0, 1}, Arm: 0, Reward: 0}); err != nil {
		t.Fatalf("Add after reopen: %v", err)
	}
	got, _ = s2.All()
	if len(got) != 2 || got[1].Seq != 2 {
		t.Fatalf("expected continued sequence, got %+v", got)
	}
}

func TestChromemStore_Nearest(t *testing.T) {
	s, _ := tempChromemStore(t, 3)
	vecs := [][]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0.8, 0.2, 0},
	}
	for i, v := range vecs {
		if err := s.Add(Record{Context: v, Arm: i}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	neighbors, err := s.Nearest([]float64{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Nearest: %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(neighbors))
	}
	if neighbors[0].Record.Arm != 0 {
		t.Fatalf("expected exact match first, got arm %d", neighbors[0].Record.Arm)
	}
	if neighbors[1].Record.Arm != 2 {
		t.Fatalf("expected near match second, got arm %d", neighbors[1].Record.Arm)
	}

	// k larger than the collection clamps instead of failing
	neighbors, err = s.Nearest([]float64{0, 1, 0}, 10)
	if err != nil {
		t.Fatalf("Nearest with large k: %v", err)
	}
	if len(neighbors) != 3 {
		t.Fatalf("expected 3 neighbors, got %d", len(neighbors))
	}
}

func TestChromemStore_Clear(t *testing.T) {
	s, _ := tempChromemStore(t, 2)
	if err := s.Add(Record{Context: []float64{1, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, err := s.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty after clear, got %d", len(got))
	}

	if err := s.Add(Record{Context: []float64{0, 1}}); err != nil {
		t.Fatalf("Add after clear: %v", err)
	}
	got, _ = s.All()
	if len(got) != 1 || got[0].Seq != 1 {
		t.Fatalf("expected fresh sequence after clear, got %+v", got)
	}
}

func TestChromemStore_DimensionCheck(t *testing.T) {
	s, _ := tempChromemStore(t, 3)
	if err := s.Add(Record{Context: []float64{1, 2}}); err == nil {
		t.Fatal("expected dimension error")
	}
}
