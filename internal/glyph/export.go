package glyph

import (
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// DefaultExportPath is where exported glyphs land unless told otherwise.
const DefaultExportPath = "output/image.jpg"

// Save writes the glyph as a still image for offline inspection. The format follows the
// file extension (jpg, png, bmp, ...); JPEG is written at full quality.
// The parent directory is created if missing.
func Save(g Glyph, path string) error {
	if path == "" {
		path = DefaultExportPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create the directory for %q", path)
	}
	if err := imaging.Save(g.Gray(), path, imaging.JPEGQuality(100)); err != nil {
		return errors.Wrapf(err, "failed to save glyph to %q", path)
	}
	return nil
}
