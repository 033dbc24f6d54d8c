package dataset

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"
)

// Batch is one decoded training batch. Images holds N tiles in CHW order
// (3 x tile x tile float64 per sample, raw 0-255 pixel values; the model
// normalizes internally).
type Batch struct {
	Images []float64
	Labels []int
	N      int
}

// BatchLoader decodes tile files into batches. Decoding within a batch
// runs on a fixed-size worker pool; batches are delivered strictly in
// order and consumed sequentially by the training loop.
type BatchLoader struct {
	TileSize  int
	BatchSize int
	Workers   int
}

// Run decodes samples in the given order and invokes fn once per batch.
// The last batch may be smaller than BatchSize. A decode failure or a
// cancelled context aborts the run; cancellation is honored at batch
// boundaries.
func (l *BatchLoader) Run(ctx context.Context, samples []Sample, order []int, fn func(Batch) error) error {
	workers := l.Workers
	if workers < 1 {
		workers = 1
	}

	sampleSize := 3 * l.TileSize * l.TileSize

	for start := 0; start < len(order); start += l.BatchSize {
		// Cancellation takes effect between batches
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + l.BatchSize
		if end > len(order) {
			end = len(order)
		}
		n := end - start

		batch := Batch{
			Images: make([]float64, n*sampleSize),
			Labels: make([]int, n),
			N:      n,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)

		for i := 0; i < n; i++ {
			i := i
			sample := samples[order[start+i]]
			batch.Labels[i] = sample.Label

			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return l.decodeInto(sample.Path, batch.Images[i*sampleSize:(i+1)*sampleSize])
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}

		if err := fn(batch); err != nil {
			return err
		}
	}

	return nil
}

// decodeInto reads a tile file and writes it as CHW float64 pixels
func (l *BatchLoader) decodeInto(path string, dst []float64) error {
	img, err := imaging.Open(path)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	nrgba := imaging.Clone(img)
	if nrgba.Bounds().Dx() != l.TileSize || nrgba.Bounds().Dy() != l.TileSize {
		nrgba = imaging.Resize(img, l.TileSize, l.TileSize, imaging.Lanczos)
	}

	ImageToCHW(nrgba, dst)
	return nil
}

// ImageToCHW writes an NRGBA image into dst as 3 channel planes of raw
// 0-255 values. dst must hold 3*w*h values.
func ImageToCHW(img *image.NRGBA, dst []float64) {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	plane := w * h

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := img.PixOffset(img.Bounds().Min.X+x, img.Bounds().Min.Y+y)
			idx := y*w + x
			dst[idx] = float64(img.Pix[off])
			dst[plane+idx] = float64(img.Pix[off+1])
			dst[2*plane+idx] = float64(img.Pix[off+2])
		}
	}
}
