package training

// PlateauScheduler reduces the learning rate when validation loss stops
// improving: after Patience epochs with no improvement the rate is
// multiplied by Factor, never dropping below MinLR.
type PlateauScheduler struct {
	factor   float64
	patience int
	minLR    float64

	currentLR float64
	bestLoss  float64
	badEpochs int
	seen      bool
}

// NewPlateauScheduler creates a scheduler starting at baseLR
func NewPlateauScheduler(baseLR, factor float64, patience int, minLR float64) *PlateauScheduler {
	return &PlateauScheduler{
		factor:    factor,
		patience:  patience,
		minLR:     minLR,
		currentLR: baseLR,
	}
}

// Step observes one epoch's validation loss and returns the learning rate
// to use next, plus whether it was just reduced
func (s *PlateauScheduler) Step(valLoss float64) (lr float64, reduced bool) {
	if !s.seen || valLoss < s.bestLoss {
		s.bestLoss = valLoss
		s.badEpochs = 0
		s.seen = true
		return s.currentLR, false
	}

	s.badEpochs++
	if s.badEpochs >= s.patience {
		s.badEpochs = 0
		next := s.currentLR * s.factor
		if next < s.minLR {
			next = s.minLR
		}
		if next < s.currentLR {
			s.currentLR = next
			return s.currentLR, true
		}
	}

	return s.currentLR, false
}

// CurrentLR returns the active learning rate
func (s *PlateauScheduler) CurrentLR() float64 {
	return s.currentLR
}

// EarlyStopper tracks the best validation accuracy seen and signals a
// stop after Patience epochs without improvement
type EarlyStopper struct {
	patience int

	bestAcc   float64
	badEpochs int
	seen      bool
}

// NewEarlyStopper creates a stopper with the given patience window
func NewEarlyStopper(patience int) *EarlyStopper {
	return &EarlyStopper{patience: patience}
}

// Observe records one epoch's validation accuracy. improved is true on a
// strict improvement over the best seen; stop is true once the patience
// window is exhausted.
func (e *EarlyStopper) Observe(valAcc float64) (improved, stop bool) {
	if !e.seen || valAcc > e.bestAcc {
		e.bestAcc = valAcc
		e.badEpochs = 0
		e.seen = true
		return true, false
	}

	e.badEpochs++
	return false, e.badEpochs >= e.patience
}

// BestAccuracy returns the best validation accuracy observed so far
func (e *EarlyStopper) BestAccuracy() float64 {
	return e.bestAcc
}
