package dataset

import (
	"context"
	"image"
	"image/color"
	"testing"
)

func TestBatchLoaderOrderAndSizes(t *testing.T) {
	root := t.TempDir()
	writer, err := NewWriter(root, []string{"empty"})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	// 10 distinguishable tiles: red channel encodes the index
	for i := 0; i < 10; i++ {
		img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				img.SetNRGBA(x, y, color.NRGBA{R: uint8(i * 10), A: 255})
			}
		}
		if _, err := writer.Write(img, "empty"); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	src, err := ScanSource(root, []string{"empty"})
	if err != nil {
		t.Fatalf("ScanSource failed: %v", err)
	}

	loader := &BatchLoader{TileSize: 4, BatchSize: 4, Workers: 2}

	order := []int{9, 8, 7, 6, 5, 4, 3, 2, 1, 0}
	var batchSizes []int
	var firstReds []float64

	err = loader.Run(context.Background(), src.Samples, order, func(b Batch) error {
		batchSizes = append(batchSizes, b.N)
		firstReds = append(firstReds, b.Images[0])
		return nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(batchSizes) != 3 {
		t.Fatalf("Expected 3 batches, got %d", len(batchSizes))
	}
	if batchSizes[0] != 4 || batchSizes[1] != 4 || batchSizes[2] != 2 {
		t.Errorf("Batch sizes %v, want [4 4 2]", batchSizes)
	}

	// Samples are glob-sorted, so sample k has red value k*10; the reversed
	// order makes the first sample of each batch 9, 5, 1.
	want := []float64{90, 50, 10}
	for i, got := range firstReds {
		if got != want[i] {
			t.Errorf("Batch %d first red channel %f, want %f", i, got, want[i])
		}
	}
}

func TestBatchLoaderCancelledBeforeStart(t *testing.T) {
	root := t.TempDir()
	writer, err := NewWriter(root, []string{"empty"})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	for i := 0; i < 8; i++ {
		if _, err := writer.Write(testImage(4), "empty"); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	src, err := ScanSource(root, []string{"empty"})
	if err != nil {
		t.Fatalf("ScanSource failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loader := &BatchLoader{TileSize: 4, BatchSize: 2, Workers: 2}
	batches := 0
	err = loader.Run(ctx, src.Samples, []int{0, 1, 2, 3, 4, 5, 6, 7}, func(Batch) error {
		batches++
		return nil
	})

	if err == nil {
		t.Fatal("Expected error from a cancelled context")
	}
	if batches != 0 {
		t.Errorf("Processed %d batches after cancellation, want 0", batches)
	}
}

func TestBatchLoaderStopsAfterCancel(t *testing.T) {
	root := t.TempDir()
	writer, err := NewWriter(root, []string{"empty"})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	for i := 0; i < 8; i++ {
		if _, err := writer.Write(testImage(4), "empty"); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	src, err := ScanSource(root, []string{"empty"})
	if err != nil {
		t.Fatalf("ScanSource failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel from within the first batch callback; the loader must not
	// deliver the remaining batches.
	loader := &BatchLoader{TileSize: 4, BatchSize: 2, Workers: 2}
	batches := 0
	err = loader.Run(ctx, src.Samples, []int{0, 1, 2, 3, 4, 5, 6, 7}, func(Batch) error {
		batches++
		cancel()
		return nil
	})

	if err == nil {
		t.Fatal("Expected error after mid-run cancellation")
	}
	if batches != 1 {
		t.Errorf("Processed %d batches after cancellation, want 1", batches)
	}
}

func TestBatchLoaderDecodeFailure(t *testing.T) {
	loader := &BatchLoader{TileSize: 4, BatchSize: 2, Workers: 2}
	samples := []Sample{{Path: "/nonexistent/tile.png"}}

	err := loader.Run(context.Background(), samples, []int{0}, func(Batch) error {
		t.Fatal("Callback invoked despite decode failure")
		return nil
	})
	if err == nil {
		t.Error("Expected error for unreadable tile")
	}
}

func TestImageToCHW(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 40, G: 50, B: 60, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{R: 70, G: 80, B: 90, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 100, G: 110, B: 120, A: 255})

	dst := make([]float64, 12)
	ImageToCHW(img, dst)

	// Channel planes: R then G then B, row-major within each plane
	wantR := []float64{10, 40, 70, 100}
	wantG := []float64{20, 50, 80, 110}
	wantB := []float64{30, 60, 90, 120}

	for i := 0; i < 4; i++ {
		if dst[i] != wantR[i] {
			t.Errorf("R[%d] = %f, want %f", i, dst[i], wantR[i])
		}
		if dst[4+i] != wantG[i] {
			t.Errorf("G[%d] = %f, want %f", i, dst[4+i], wantG[i])
		}
		if dst[8+i] != wantB[i] {
			t.Errorf("B[%d] = %f, want %f", i, dst[8+i], wantB[i])
		}
	}
}
