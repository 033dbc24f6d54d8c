package dataset

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// Writer persists labeled tiles under a class-per-directory tree:
// <root>/<class>/tile_<7-digit-index>[_aug].png. The directory name is
// the label; no separate manifest exists.
type Writer struct {
	root    string
	classes map[string]bool
	next    int
}

// NewWriter creates the class directories and returns a writer
func NewWriter(root string, classes []string) (*Writer, error) {
	set := make(map[string]bool, len(classes))
	for _, class := range classes {
		set[class] = true
		if err := os.MkdirAll(filepath.Join(root, class), 0755); err != nil {
			return nil, fmt.Errorf("failed to create class directory: %w", err)
		}
	}

	return &Writer{root: root, classes: set}, nil
}

// Write saves a tile under its class directory and returns the index it
// was assigned
func (w *Writer) Write(img image.Image, label string) (int, error) {
	index := w.next
	if err := w.write(img, label, index, false); err != nil {
		return 0, err
	}
	w.next++
	return index, nil
}

// WriteAugmented saves an augmented variant alongside the original tile,
// sharing its index with an _aug suffix
func (w *Writer) WriteAugmented(img image.Image, label string, index int) error {
	return w.write(img, label, index, true)
}

// Count returns the number of original tiles written
func (w *Writer) Count() int {
	return w.next
}

func (w *Writer) write(img image.Image, label string, index int, augmented bool) error {
	if !w.classes[label] {
		return fmt.Errorf("label %q is not in the class catalog", label)
	}

	suffix := ""
	if augmented {
		suffix = "_aug"
	}
	path := filepath.Join(w.root, label, fmt.Sprintf("tile_%07d%s.png", index, suffix))

	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save tile: %w", err)
	}
	return nil
}

// ClassDistribution counts tiles per class directory under root
func ClassDistribution(root string, classes []string) (map[string]int, error) {
	dist := make(map[string]int, len(classes))

	for _, class := range classes {
		matches, err := filepath.Glob(filepath.Join(root, class, "*.png"))
		if err != nil {
			return nil, err
		}
		dist[class] = len(matches)
	}

	return dist, nil
}
