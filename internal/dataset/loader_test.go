package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

var testClasses = []string{"empty", "wK", "bK"}

// writeTree creates a tile tree with the given per-class counts
func writeTree(t *testing.T, root string, counts map[string]int) {
	t.Helper()

	writer, err := NewWriter(root, testClasses)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	img := testImage(10)
	for class, n := range counts {
		for i := 0; i < n; i++ {
			if _, err := writer.Write(img, class); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
		}
	}
}

func TestScanSource(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]int{"empty": 5, "wK": 2, "bK": 1})

	src, err := ScanSource(root, testClasses)
	if err != nil {
		t.Fatalf("ScanSource failed: %v", err)
	}

	if len(src.Samples) != 8 {
		t.Errorf("Expected 8 samples, got %d", len(src.Samples))
	}

	// Labels resolve by configured class order, not directory order
	counts := make(map[int]int)
	for _, s := range src.Samples {
		counts[s.Label]++
	}
	if counts[0] != 5 {
		t.Errorf("Expected 5 samples with label 0 (empty), got %d", counts[0])
	}
	if counts[1] != 2 {
		t.Errorf("Expected 2 samples with label 1 (wK), got %d", counts[1])
	}
	if counts[2] != 1 {
		t.Errorf("Expected 1 sample with label 2 (bK), got %d", counts[2])
	}
}

func TestScanSourceUnknownClass(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]int{"empty": 1})

	if err := os.MkdirAll(filepath.Join(root, "mystery"), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	if _, err := ScanSource(root, testClasses); err == nil {
		t.Error("Expected error for directory outside the class catalog")
	}
}

func TestScanSourceEmpty(t *testing.T) {
	root := t.TempDir()
	if _, err := NewWriter(root, testClasses); err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	if _, err := ScanSource(root, testClasses); err == nil {
		t.Error("Expected error for tree with no tiles")
	}
}

func TestConcat(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	writeTree(t, rootA, map[string]int{"empty": 3, "wK": 1, "bK": 1})
	writeTree(t, rootB, map[string]int{"empty": 2, "wK": 1, "bK": 1})

	srcA, err := ScanSource(rootA, testClasses)
	if err != nil {
		t.Fatalf("ScanSource failed: %v", err)
	}
	srcB, err := ScanSource(rootB, testClasses)
	if err != nil {
		t.Fatalf("ScanSource failed: %v", err)
	}

	pool, err := Concat(srcA, srcB)
	if err != nil {
		t.Fatalf("Concat failed: %v", err)
	}

	if len(pool.Samples) != 9 {
		t.Errorf("Expected 9 pooled samples, got %d", len(pool.Samples))
	}

	sizes := pool.SourceSizes()
	if sizes[0] != 5 || sizes[1] != 4 {
		t.Errorf("Expected source sizes [5 4], got %v", sizes)
	}

	// Every sample is tagged with its source
	for _, s := range pool.Samples {
		if s.SourceID != 0 && s.SourceID != 1 {
			t.Fatalf("Sample has source ID %d", s.SourceID)
		}
	}
}

func TestConcatClassMismatch(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	writeTree(t, rootA, map[string]int{"empty": 1, "wK": 1, "bK": 1})

	// rootB only has two of the three class directories populated
	writerB, err := NewWriter(rootB, []string{"empty", "wK"})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	if _, err := writerB.Write(testImage(10), "empty"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	srcA, err := ScanSource(rootA, testClasses)
	if err != nil {
		t.Fatalf("ScanSource failed: %v", err)
	}
	srcB, err := ScanSource(rootB, testClasses)
	if err != nil {
		t.Fatalf("ScanSource failed: %v", err)
	}

	if _, err := Concat(srcA, srcB); err == nil {
		t.Error("Expected error for mismatched class sets")
	}
}

func TestSplit(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]int{"empty": 80, "wK": 10, "bK": 10})

	src, err := ScanSource(root, testClasses)
	if err != nil {
		t.Fatalf("ScanSource failed: %v", err)
	}
	pool, err := Concat(src)
	if err != nil {
		t.Fatalf("Concat failed: %v", err)
	}

	train, val := pool.Split(0.15, 42)

	if len(val) != 15 {
		t.Errorf("Expected 15 validation samples, got %d", len(val))
	}
	if len(train)+len(val) != 100 {
		t.Errorf("Split lost samples: %d train + %d val", len(train), len(val))
	}

	// No sample lands in both partitions
	inVal := make(map[string]bool)
	for _, s := range val {
		inVal[s.Path] = true
	}
	for _, s := range train {
		if inVal[s.Path] {
			t.Fatalf("Sample %s is in both train and val", s.Path)
		}
	}

	// Same seed, same split
	train2, val2 := pool.Split(0.15, 42)
	if len(train2) != len(train) || len(val2) != len(val) {
		t.Fatal("Same seed produced different split sizes")
	}
	for i := range val {
		if val[i].Path != val2[i].Path {
			t.Fatal("Same seed produced a different validation set")
		}
	}
}
