package assets

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL points at the Lichess piece asset tree
const DefaultBaseURL = "https://raw.githubusercontent.com/lichess-org/lila/master/public/piece"

// PieceColors are the color prefixes used in asset filenames
var PieceColors = []byte{'w', 'b'}

// PieceLetters are the piece-type letters used in asset filenames
var PieceLetters = []byte{'P', 'N', 'B', 'R', 'Q', 'K'}

// Downloader fetches SVG piece sets into a local cache directory.
// Individual download failures are logged and skipped; they do not abort
// the run.
type Downloader struct {
	BaseURL string
	DestDir string
	Client  *http.Client
	Logger  *zap.Logger
}

// NewDownloader creates a downloader with a sane HTTP timeout
func NewDownloader(destDir string, logger *zap.Logger) *Downloader {
	return &Downloader{
		BaseURL: DefaultBaseURL,
		DestDir: destDir,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Logger:  logger,
	}
}

// DownloadSets fetches all 12 glyphs for each named set. Returns the
// number of files fetched or already present.
func (d *Downloader) DownloadSets(sets []string) (int, error) {
	total := 0

	for _, set := range sets {
		setDir := filepath.Join(d.DestDir, set)
		if err := os.MkdirAll(setDir, 0755); err != nil {
			return total, fmt.Errorf("failed to create set directory: %w", err)
		}

		got := 0
		for _, color := range PieceColors {
			for _, letter := range PieceLetters {
				name := fmt.Sprintf("%c%c.svg", color, letter)
				dest := filepath.Join(setDir, name)

				if _, err := os.Stat(dest); err == nil {
					got++
					continue
				}

				url := fmt.Sprintf("%s/%s/%s", d.BaseURL, set, name)
				if err := d.fetch(url, dest); err != nil {
					d.Logger.Warn("piece download failed",
						zap.String("set", set),
						zap.String("file", name),
						zap.Error(err))
					continue
				}
				got++
			}
		}

		d.Logger.Info("piece set downloaded",
			zap.String("set", set),
			zap.Int("pieces", got))
		total += got
	}

	return total, nil
}

func (d *Downloader) fetch(url, dest string) error {
	resp, err := d.Client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	file, err := os.Create(dest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(dest)
		return err
	}

	return file.Close()
}

// AvailableSets returns the subset of the catalog that is fully present on
// disk, i.e. has all 12 SVG glyphs.
func AvailableSets(dir string, catalog []string) []string {
	var available []string

	for _, set := range catalog {
		setDir := filepath.Join(dir, set)
		matches, err := filepath.Glob(filepath.Join(setDir, "*.svg"))
		if err != nil {
			continue
		}
		if len(matches) >= 12 {
			available = append(available, set)
		}
	}

	return available
}

// PiecePath returns the asset path for a single glyph
func PiecePath(dir, set string, color, letter byte) string {
	return filepath.Join(dir, set, fmt.Sprintf("%c%c.svg", color, letter))
}
