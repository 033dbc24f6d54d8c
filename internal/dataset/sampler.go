package dataset

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// WeightedSampler draws training sample indices with replacement, each
// sample weighted by the inverse of its source's size. A small source
// then contributes the same expected mass per epoch as a large one.
type WeightedSampler struct {
	weighted sampleuv.Weighted
	weights  []float64
}

// NewWeightedSampler builds the per-sample weights from the samples'
// source tags and the source sizes
func NewWeightedSampler(samples []Sample, sourceSizes []int, seed uint64) *WeightedSampler {
	weights := make([]float64, len(samples))
	for i, s := range samples {
		weights[i] = 1.0 / float64(sourceSizes[s.SourceID])
	}

	return &WeightedSampler{
		weighted: sampleuv.NewWeighted(weights, rand.NewSource(seed)),
		weights:  weights,
	}
}

// Sample draws n indices with replacement. sampleuv.Weighted zeroes a
// taken weight, so it is restored after every draw.
func (s *WeightedSampler) Sample(n int) []int {
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		idx, ok := s.weighted.Take()
		if !ok {
			break
		}
		s.weighted.Reweight(idx, s.weights[idx])
		indices = append(indices, idx)
	}
	return indices
}
