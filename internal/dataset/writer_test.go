package dataset

import (
	"image"
	"os"
	"path/filepath"
	"testing"
)

func testImage(size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	return img
}

func TestWriterCreatesClassDirs(t *testing.T) {
	tmpDir := t.TempDir()
	classes := []string{"empty", "wK", "bK"}

	if _, err := NewWriter(tmpDir, classes); err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	for _, class := range classes {
		if _, err := os.Stat(filepath.Join(tmpDir, class)); err != nil {
			t.Errorf("Class directory %s not created: %v", class, err)
		}
	}
}

func TestWriterNaming(t *testing.T) {
	tmpDir := t.TempDir()
	writer, err := NewWriter(tmpDir, []string{"empty", "wK"})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	img := testImage(50)

	idx0, err := writer.Write(img, "empty")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	idx1, err := writer.Write(img, "wK")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if idx0 != 0 || idx1 != 1 {
		t.Errorf("Expected indices 0 and 1, got %d and %d", idx0, idx1)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "empty", "tile_0000000.png")); err != nil {
		t.Errorf("Expected tile_0000000.png: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "wK", "tile_0000001.png")); err != nil {
		t.Errorf("Expected tile_0000001.png: %v", err)
	}

	if writer.Count() != 2 {
		t.Errorf("Expected count 2, got %d", writer.Count())
	}
}

func TestWriteAugmentedSharesIndex(t *testing.T) {
	tmpDir := t.TempDir()
	writer, err := NewWriter(tmpDir, []string{"wQ"})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	img := testImage(50)
	idx, err := writer.Write(img, "wQ")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if err := writer.WriteAugmented(img, "wQ", idx); err != nil {
		t.Fatalf("WriteAugmented failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "wQ", "tile_0000000_aug.png")); err != nil {
		t.Errorf("Expected tile_0000000_aug.png: %v", err)
	}

	// Augmented writes do not advance the index
	if writer.Count() != 1 {
		t.Errorf("Expected count 1, got %d", writer.Count())
	}
}

func TestWriterRejectsUnknownLabel(t *testing.T) {
	writer, err := NewWriter(t.TempDir(), []string{"empty"})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	if _, err := writer.Write(testImage(50), "wZ"); err == nil {
		t.Error("Expected error for label outside the catalog")
	}
}

func TestClassDistribution(t *testing.T) {
	tmpDir := t.TempDir()
	classes := []string{"empty", "wK"}
	writer, err := NewWriter(tmpDir, classes)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	img := testImage(50)
	for i := 0; i < 3; i++ {
		if _, err := writer.Write(img, "empty"); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	idx, err := writer.Write(img, "wK")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := writer.WriteAugmented(img, "wK", idx); err != nil {
		t.Fatalf("WriteAugmented failed: %v", err)
	}

	dist, err := ClassDistribution(tmpDir, classes)
	if err != nil {
		t.Fatalf("ClassDistribution failed: %v", err)
	}

	if dist["empty"] != 3 {
		t.Errorf("Expected 3 empty tiles, got %d", dist["empty"])
	}
	// Augmented variants count as dataset members
	if dist["wK"] != 2 {
		t.Errorf("Expected 2 wK tiles, got %d", dist["wK"])
	}
}
