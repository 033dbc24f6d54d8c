package dataset

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Sample is one tile file with its resolved class index and the index of
// the source tree it came from
type Sample struct {
	Path     string
	Label    int
	SourceID int
}

// Source is one scanned tile tree. Labels are resolved against the
// configured class order, not directory sort order, so every source maps
// the same class name to the same index.
type Source struct {
	Root    string
	Samples []Sample
	Classes []string // class directories present, sorted
}

// ScanSource walks one tile tree. Every subdirectory must be a known
// class name; unknown directories are a schema violation.
func ScanSource(root string, classes []string) (*Source, error) {
	classIndex := make(map[string]int, len(classes))
	for i, class := range classes {
		classIndex[class] = i
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read tiles directory: %w", err)
	}

	src := &Source{Root: root}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		name := entry.Name()
		label, ok := classIndex[name]
		if !ok {
			return nil, fmt.Errorf("directory %q in %s is not a configured class", name, root)
		}

		matches, err := filepath.Glob(filepath.Join(root, name, "*.png"))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)

		for _, path := range matches {
			src.Samples = append(src.Samples, Sample{Path: path, Label: label})
		}
		src.Classes = append(src.Classes, name)
	}

	sort.Strings(src.Classes)

	if len(src.Samples) == 0 {
		return nil, fmt.Errorf("no tiles found under %s", root)
	}

	return src, nil
}

// MultiSource concatenates several tile trees into one sample pool,
// tagging each sample with its source for weighted resampling
type MultiSource struct {
	Sources []*Source
	Samples []Sample
}

// Concat combines sources. All sources must expose the exact same class
// directory set (size and names); a mismatch is a fatal precondition
// error, not retried.
func Concat(sources ...*Source) (*MultiSource, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources given")
	}

	ref := sources[0].Classes
	for _, src := range sources[1:] {
		if !equalClasses(ref, src.Classes) {
			return nil, fmt.Errorf("class set mismatch: %s has [%s], %s has [%s]",
				sources[0].Root, strings.Join(ref, " "),
				src.Root, strings.Join(src.Classes, " "))
		}
	}

	m := &MultiSource{Sources: sources}
	for id, src := range sources {
		for _, s := range src.Samples {
			s.SourceID = id
			m.Samples = append(m.Samples, s)
		}
	}

	return m, nil
}

// SourceSizes returns the sample count of each source
func (m *MultiSource) SourceSizes() []int {
	sizes := make([]int, len(m.Sources))
	for i, src := range m.Sources {
		sizes[i] = len(src.Samples)
	}
	return sizes
}

// Split partitions the concatenated pool into train and validation sets
// with a deterministic seeded shuffle. The split is over the whole pool,
// not per source, so validation composition mirrors source proportions.
func (m *MultiSource) Split(valFraction float64, seed int64) (train, val []Sample) {
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(m.Samples))

	nVal := int(float64(len(m.Samples)) * valFraction)

	val = make([]Sample, 0, nVal)
	train = make([]Sample, 0, len(m.Samples)-nVal)
	for i, idx := range perm {
		if i < nVal {
			val = append(val, m.Samples[idx])
		} else {
			train = append(train, m.Samples[idx])
		}
	}

	return train, val
}

func equalClasses(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
