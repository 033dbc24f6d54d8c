package tiles

import (
	"image"
	"math/rand"

	"github.com/disintegration/imaging"
)

// Augmenter applies light brightness/contrast jitter to tiles. Each
// transform scales by a factor drawn uniformly from [MinFactor, MaxFactor]
// and clamps to [0, 255]; contrast is scaled about the tile's own mean
// intensity. Augmented tiles are saved alongside the originals.
type Augmenter struct {
	Probability float64
	MinFactor   float64
	MaxFactor   float64

	rng *rand.Rand
}

// NewAugmenter creates an augmenter with the standard jitter range
func NewAugmenter(probability float64, rng *rand.Rand) *Augmenter {
	return &Augmenter{
		Probability: probability,
		MinFactor:   0.9,
		MaxFactor:   1.1,
		rng:         rng,
	}
}

// ShouldAugment rolls the per-tile augmentation probability
func (a *Augmenter) ShouldAugment() bool {
	return a.rng.Float64() < a.Probability
}

// Apply returns a jittered copy of the tile; the input is not modified
func (a *Augmenter) Apply(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)

	brightness := a.factor()
	scalePixels(out, func(v float64) float64 {
		return clamp255(v * brightness)
	})

	mean := meanIntensity(out)
	contrast := a.factor()
	scalePixels(out, func(v float64) float64 {
		return clamp255((v-mean)*contrast + mean)
	})

	return out
}

func (a *Augmenter) factor() float64 {
	return a.MinFactor + a.rng.Float64()*(a.MaxFactor-a.MinFactor)
}

// scalePixels applies fn to every RGB channel value, leaving alpha alone
func scalePixels(img *image.NRGBA, fn func(float64) float64) {
	for i := 0; i < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			img.Pix[i+c] = uint8(fn(float64(img.Pix[i+c])) + 0.5)
		}
	}
}

// meanIntensity averages the RGB channel values of the image
func meanIntensity(img *image.NRGBA) float64 {
	if len(img.Pix) == 0 {
		return 0
	}

	var sum float64
	var count int
	for i := 0; i < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			sum += float64(img.Pix[i+c])
			count++
		}
	}
	return sum / float64(count)
}

func clamp255(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
