package model

import "testing"

func TestPooledSize(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{50, 25},
		{25, 12},
		{12, 6},
		{8, 4},
	}

	for _, tt := range tests {
		if got := PooledSize(tt.in); got != tt.want {
			t.Errorf("PooledSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFlatSize(t *testing.T) {
	// 50 -> 25 -> 12, so 32*12*12
	if got := FlatSize(50); got != 4608 {
		t.Errorf("FlatSize(50) = %d, want 4608", got)
	}
	// 8 -> 4 -> 2
	if got := FlatSize(8); got != 128 {
		t.Errorf("FlatSize(8) = %d, want 128", got)
	}
}

func TestNewTileCNN(t *testing.T) {
	m, err := NewTileCNN(2, 8, 13)
	if err != nil {
		t.Fatalf("Failed to create model: %v", err)
	}
	defer m.Close()

	if m.BatchSize() != 2 || m.TileSize() != 8 || m.NumClasses() != 13 {
		t.Errorf("Model metadata wrong: batch %d, tile %d, classes %d",
			m.BatchSize(), m.TileSize(), m.NumClasses())
	}

	learnables := m.Learnables()
	if len(learnables) != 10 {
		t.Fatalf("Expected 10 learnable tensors, got %d", len(learnables))
	}

	// conv1: 16*3*3*3+16, conv2: 32*16*3*3+32, fc1: 128*256+256,
	// fc2: 256*128+128, fc3: 128*13+13
	want := 16*3*3*3 + 16 + 32*16*3*3 + 32 + 128*256 + 256 + 256*128 + 128 + 128*13 + 13
	if got := m.ParamCount(); got != want {
		t.Errorf("ParamCount = %d, want %d", got, want)
	}
}

func TestSetInputSizeCheck(t *testing.T) {
	m, err := NewTileCNN(1, 8, 13)
	if err != nil {
		t.Fatalf("Failed to create model: %v", err)
	}
	defer m.Close()

	if err := m.SetInput(make([]float64, 10)); err == nil {
		t.Error("Expected error for wrong input size")
	}

	if err := m.SetInput(make([]float64, 3*8*8)); err != nil {
		t.Errorf("Correct-size input rejected: %v", err)
	}
}

func TestWeightsRoundTrip(t *testing.T) {
	m, err := NewTileCNN(1, 8, 13)
	if err != nil {
		t.Fatalf("Failed to create model: %v", err)
	}
	defer m.Close()

	weights := m.Weights()
	if len(weights) != 10 {
		t.Fatalf("Expected 10 weight tensors, got %d", len(weights))
	}

	names := make(map[string]bool)
	for _, w := range weights {
		names[w.Name] = true
		if len(w.Data) == 0 {
			t.Errorf("Weight %s has no data", w.Name)
		}
	}
	for _, want := range []string{"conv1_w", "conv1_b", "conv2_w", "conv2_b",
		"fc1_w", "fc1_b", "fc2_w", "fc2_b", "fc3_w", "fc3_b"} {
		if !names[want] {
			t.Errorf("Weight %s missing from snapshot", want)
		}
	}

	// Perturb the snapshot and load it into a fresh model
	for i := range weights[0].Data {
		weights[0].Data[i] = float64(i)
	}

	m2, err := NewTileCNN(1, 8, 13)
	if err != nil {
		t.Fatalf("Failed to create second model: %v", err)
	}
	defer m2.Close()

	if err := m2.LoadWeights(weights); err != nil {
		t.Fatalf("LoadWeights failed: %v", err)
	}

	restored := m2.Weights()
	for _, w := range restored {
		if w.Name != weights[0].Name {
			continue
		}
		for i, v := range w.Data {
			if v != float64(i) {
				t.Fatalf("Weight %s not restored: data[%d] = %f", w.Name, i, v)
			}
		}
	}
}

func TestLoadWeightsMissingTensor(t *testing.T) {
	m, err := NewTileCNN(1, 8, 13)
	if err != nil {
		t.Fatalf("Failed to create model: %v", err)
	}
	defer m.Close()

	partial := m.Weights()[:3]
	if err := m.LoadWeights(partial); err == nil {
		t.Error("Expected error for incomplete weight set")
	}
}

func TestArgmax(t *testing.T) {
	tests := []struct {
		values []float64
		want   int
	}{
		{[]float64{0.1, 0.7, 0.2}, 1},
		{[]float64{0.9}, 0},
		{[]float64{0.3, 0.3, 0.4}, 2},
		{nil, -1},
	}

	for _, tt := range tests {
		if got := Argmax(tt.values); got != tt.want {
			t.Errorf("Argmax(%v) = %d, want %d", tt.values, got, tt.want)
		}
	}
}
