package dataset

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/Brownie44l1/handwriting-api/internal/idx"
)

// extract copies the archive members prefix+name, for every name, into dir. A missing
// member is a *idx.FormatError.
func extract(archive, prefix string, names []string, dir string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return &idx.FormatError{Source: archive, Reason: "not a zip archive: " + err.Error()}
	}
	defer func() { _ = zr.Close() }()

	for _, name := range names {
		member := prefix + name
		f, err := zr.Open(member)
		if err != nil {
			return &idx.FormatError{Source: archive, Reason: "missing member " + member}
		}
		err = writeFile(filepath.Join(dir, name), f)
		_ = f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// extractOptional is like extract for a single member that may be absent, and is only
// extracted if not already in dir.
func extractOptional(archive, prefix, name, dir string) error {
	if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
		return nil
	}
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return &idx.FormatError{Source: archive, Reason: "not a zip archive: " + err.Error()}
	}
	defer func() { _ = zr.Close() }()

	f, err := zr.Open(prefix + name)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()
	return writeFile(filepath.Join(dir, name), f)
}

// writeFile writes r to path through a temporary file, so path only ever appears complete.
func writeFile(path string, r io.Reader) (err error) {
	partial := path + ".part"
	out, err := os.Create(partial)
	if err != nil {
		return errors.Wrapf(err, "failed creating file %q", partial)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(partial)
		}
	}()
	_, err = io.Copy(out, r)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errors.Wrapf(err, "failed writing %q", partial)
	}
	return errors.Wrapf(os.Rename(partial, path), "failed moving %q into place", partial)
}
