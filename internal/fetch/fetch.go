// Package fetch downloads dataset artifacts into a local cache directory. A file present on
// disk is the only cache-validity signal: nothing already there is fetched again.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
	"k8s.io/klog/v2"
)

// TransferError reports a failed download. Whatever was partially written has been removed.
type TransferError struct {
	URL string
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("failed downloading %q: %v", e.URL, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Client is the HTTP client used for downloads.
var Client = &http.Client{
	CheckRedirect: func(r *http.Request, via []*http.Request) error {
		r.URL.Opaque = r.URL.Path
		return nil
	},
}

// ShowProgress controls the progress bar. By default it's shown only when stderr is a terminal.
var ShowProgress = term.IsTerminal(int(os.Stderr.Fd()))

// FileExists returns whether the file or directory exists or an error if something went
// wrong in the filesystem.
func FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, errors.Wrapf(err, "failed to FileExists(%q)", path)
}

// ReplaceTildeInDir by the user's home directory. Returns dir if it doesn't start with "~".
func ReplaceTildeInDir(dir string) (string, error) {
	if dir == "" || dir[0] != '~' {
		return dir, nil
	}
	var userName string
	if dir != "~" && !strings.HasPrefix(dir, "~/") {
		userName, _, _ = strings.Cut(dir[1:], "/")
	}
	var usr *user.User
	var err error
	if userName == "" {
		usr, err = user.Current()
	} else {
		usr, err = user.Lookup(userName)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to lookup home directory for user in path %q", dir)
	}
	return filepath.Join(usr.HomeDir, dir[1+len(userName):]), nil
}

// DownloadIfMissing downloads url into path unless path already exists.
func DownloadIfMissing(ctx context.Context, url, path string) error {
	exists, err := FileExists(path)
	if err != nil {
		return err
	}
	if exists {
		klog.V(1).Infof("Using cached %s", path)
		return nil
	}
	klog.Infof("Downloading %s ...", url)
	size, err := Download(ctx, url, path)
	if err != nil {
		return err
	}
	klog.Infof("Downloaded %s (%s)", path, humanize.Bytes(uint64(size)))
	return nil
}

// Download fetches url into path, creating the parent directory if needed. The body is
// written to a temporary "<path>.part" file that is renamed into place only once complete,
// so an interrupted transfer never leaves a file that looks cached.
func Download(ctx context.Context, url, path string) (size int64, err error) {
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, errors.Wrapf(err, "failed to create the directory for the path: %q", filepath.Dir(path))
	}
	partial := path + ".part"
	defer func() {
		if err != nil {
			_ = os.Remove(partial)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &TransferError{URL: url, Err: err}
	}
	resp, err := Client.Do(req)
	if err != nil {
		return 0, &TransferError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0, &TransferError{URL: url, Err: errors.Errorf("unexpected status %s", resp.Status)}
	}

	file, err := os.Create(partial)
	if err != nil {
		return 0, errors.Wrapf(err, "failed creating file %q", partial)
	}
	var w io.Writer = file
	if ShowProgress {
		bar := progressbar.DefaultBytes(resp.ContentLength, filepath.Base(path))
		defer func() { _ = bar.Close() }()
		w = io.MultiWriter(file, bar)
	}
	size, err = io.Copy(w, resp.Body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, &TransferError{URL: url, Err: err}
	}
	if resp.ContentLength >= 0 && size != resp.ContentLength {
		return 0, &TransferError{URL: url, Err: errors.Errorf("got %d of %d bytes", size, resp.ContentLength)}
	}
	if err = os.Rename(partial, path); err != nil {
		return 0, errors.Wrapf(err, "failed moving %q into place", partial)
	}
	return size, nil
}
