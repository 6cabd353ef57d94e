package dataset

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Brownie44l1/handwriting-api/internal/fetch"
	"github.com/Brownie44l1/handwriting-api/internal/glyph"
	"github.com/Brownie44l1/handwriting-api/internal/idx"
	"github.com/Brownie44l1/handwriting-api/internal/labels"
)

const (
	mnistURL        = "https://storage.googleapis.com/cvdf-datasets/mnist/"
	emnistURL       = "https://biometrics.nist.gov/cs_links/EMNIST/gzip.zip"
	emnistArchive   = "emnist-gzip.zip"
	emnistPrefix    = "gzip/"
	mnistTrainCount = 50000
	holdoutPercent  = 10
	imageSide       = 28
)

// EMNISTSplits lists the EMNIST splits that can be loaded.
var EMNISTSplits = []string{"balanced", "byclass", "bymerge", "digits", "letters", "mnist"}

// ValidationError reports a request for a dataset or split that doesn't exist.
type ValidationError struct {
	Field, Value string
	Valid        []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q, expected one of %q", e.Field, e.Value, e.Valid)
}

// Files names the four containers of a dataset.
type Files struct {
	TrainImages, TrainLabels, TestImages, TestLabels string
}

func (f Files) all() []string {
	return []string{f.TrainImages, f.TrainLabels, f.TestImages, f.TestLabels}
}

// Source describes where a dataset comes from and how it's assembled.
type Source struct {
	Name string
	// Dir is the cache subdirectory, under the data directory, holding the containers.
	Dir   string
	Files Files

	// BaseURL, when set, serves every container individually.
	BaseURL string
	// ArchiveURL, when set, serves a zip archive holding every container under ArchivePrefix.
	ArchiveURL, ArchiveName, ArchivePrefix string
	// MappingFile is an optional archive member naming the classes.
	MappingFile string

	// Rotated containers store every image transposed.
	Rotated bool
	// NumClasses is the fixed class count, or 0 to discover it from the labels.
	NumClasses int
	Partition  Partition
}

// MNIST is the handwritten digits dataset: 60000 training images, of which the first 50000
// are used for training and the rest for validation, and 10000 test images.
func MNIST() Source {
	return Source{
		Name: "mnist",
		Dir:  "mnist",
		Files: Files{
			TrainImages: "train-images-idx3-ubyte.gz",
			TrainLabels: "train-labels-idx1-ubyte.gz",
			TestImages:  "t10k-images-idx3-ubyte.gz",
			TestLabels:  "t10k-labels-idx1-ubyte.gz",
		},
		BaseURL:    mnistURL,
		NumClasses: 10,
		Partition:  FixedPartition{TrainSize: mnistTrainCount},
	}
}

// EMNIST is the extended handwritten characters dataset. Its images are stored transposed,
// its class count depends on the split and the last 10% of the training file is held out
// for validation.
func EMNIST(split string) (Source, error) {
	if !slices.Contains(EMNISTSplits, split) {
		return Source{}, &ValidationError{Field: "EMNIST split", Value: split, Valid: EMNISTSplits}
	}
	name := "emnist-" + split
	return Source{
		Name: name,
		Dir:  "emnist",
		Files: Files{
			TrainImages: name + "-train-images-idx3-ubyte.gz",
			TrainLabels: name + "-train-labels-idx1-ubyte.gz",
			TestImages:  name + "-test-images-idx3-ubyte.gz",
			TestLabels:  name + "-test-labels-idx1-ubyte.gz",
		},
		ArchiveURL:    emnistURL,
		ArchiveName:   emnistArchive,
		ArchivePrefix: emnistPrefix,
		MappingFile:   name + "-mapping.txt",
		Rotated:       true,
		Partition:     HoldoutPartition{Percent: holdoutPercent},
	}, nil
}

// Lookup returns the source named by a dataset ("mnist" or "emnist") and, for EMNIST, a split.
func Lookup(dataset, split string) (Source, error) {
	switch strings.ToLower(dataset) {
	case "mnist":
		return MNIST(), nil
	case "emnist":
		return EMNIST(split)
	}
	return Source{}, &ValidationError{Field: "dataset", Value: dataset, Valid: []string{"mnist", "emnist"}}
}

// Fetch makes sure every container of src is in dataDir, downloading or extracting only what
// is missing.
func Fetch(ctx context.Context, src Source, dataDir string) error {
	dir := filepath.Join(dataDir, src.Dir)
	var missing []string
	for _, name := range src.Files.all() {
		exists, err := fetch.FileExists(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if !exists {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return fetchMapping(src, dir)
	}

	if src.BaseURL != "" {
		for _, name := range missing {
			fileURL, err := url.JoinPath(src.BaseURL, name)
			if err != nil {
				return errors.Wrapf(err, "bad base URL %q", src.BaseURL)
			}
			if err := fetch.DownloadIfMissing(ctx, fileURL, filepath.Join(dir, name)); err != nil {
				return err
			}
		}
		return nil
	}

	if src.ArchiveURL == "" {
		return errors.Errorf("dataset %s: %d containers missing from %q and no URL to fetch them from",
			src.Name, len(missing), dir)
	}
	archive := filepath.Join(dir, src.ArchiveName)
	if err := fetch.DownloadIfMissing(ctx, src.ArchiveURL, archive); err != nil {
		return err
	}
	klog.Infof("Extracting files for %s ...", src.Name)
	if err := extract(archive, src.ArchivePrefix, missing, dir); err != nil {
		return err
	}
	return fetchMapping(src, dir)
}

// fetchMapping extracts the class mapping file of src from its cached archive, if both exist
// and the mapping isn't in dir yet. It never downloads anything.
func fetchMapping(src Source, dir string) error {
	if src.MappingFile == "" || src.ArchiveName == "" {
		return nil
	}
	archive := filepath.Join(dir, src.ArchiveName)
	exists, err := fetch.FileExists(archive)
	if err != nil || !exists {
		return err
	}
	return extractOptional(archive, src.ArchivePrefix, src.MappingFile, dir)
}

// Load fetches, decodes and assembles src. Any failure aborts the whole load: no partial
// split is ever returned.
func Load(ctx context.Context, src Source, dataDir string, layout glyph.Layout) (*Split, error) {
	dataDir, err := fetch.ReplaceTildeInDir(dataDir)
	if err != nil {
		return nil, err
	}
	if err := Fetch(ctx, src, dataDir); err != nil {
		return nil, err
	}
	decoded, err := Decode(src, filepath.Join(dataDir, src.Dir))
	if err != nil {
		return nil, err
	}
	split, err := Assemble(decoded, src.Partition, layout, src.NumClasses)
	if err != nil {
		return nil, err
	}
	split.Classes = classNames(src, filepath.Join(dataDir, src.Dir), split.NumClasses)
	klog.V(1).Infof("%s: %d train, %d validation, %d test examples, %d classes", src.Name,
		split.Train.Len(), split.Validation.Len(), split.Test.Len(), split.NumClasses)
	return split, nil
}

// Decode reads the four containers of src from dir, correcting the geometry of rotated sources.
func Decode(src Source, dir string) (*Decoded, error) {
	var (
		d   Decoded
		err error
	)
	read := []struct {
		dst    **idx.Tensor
		name   string
		offset int
		shape  []int
	}{
		{&d.TrainImages, src.Files.TrainImages, idx.ImageOffset, []int{-1, imageSide, imageSide}},
		{&d.TrainLabels, src.Files.TrainLabels, idx.LabelOffset, []int{-1}},
		{&d.TestImages, src.Files.TestImages, idx.ImageOffset, []int{-1, imageSide, imageSide}},
		{&d.TestLabels, src.Files.TestLabels, idx.LabelOffset, []int{-1}},
	}
	for _, r := range read {
		*r.dst, err = readContainer(filepath.Join(dir, r.name), r.offset, r.shape...)
		if err != nil {
			return nil, err
		}
	}
	if src.Rotated {
		d.TrainImages = d.TrainImages.Transpose()
		d.TestImages = d.TestImages.Transpose()
	}
	return &d, nil
}

// readContainer decodes the gzipped container at path, checking the sample count declared
// in its header against the payload.
func readContainer(path string, offset int, shape ...int) (*idx.Tensor, error) {
	data, err := idx.ReadGzip(path)
	if err != nil {
		return nil, err
	}
	header, err := idx.ParseHeader(data)
	if err == nil && header.Size() != offset {
		err = &idx.FormatError{Reason: fmt.Sprintf("header is %d bytes, expected %d", header.Size(), offset)}
	}
	var t *idx.Tensor
	if err == nil {
		t, err = idx.Decode(data, offset, shape...)
	}
	if err == nil && header.Count() != t.Len() {
		err = &idx.FormatError{Reason: fmt.Sprintf("header declares %d samples, payload holds %d", header.Count(), t.Len())}
	}
	if err != nil {
		var fe *idx.FormatError
		if errors.As(err, &fe) {
			fe.Source = path
		}
		return nil, err
	}
	return t, nil
}

func classNames(src Source, dir string, numClasses int) []string {
	if src.MappingFile != "" {
		f, err := os.Open(filepath.Join(dir, src.MappingFile))
		if err == nil {
			defer func() { _ = f.Close() }()
			names, err := labels.ParseMapping(f)
			switch {
			case err != nil:
				klog.Warningf("Ignoring class mapping %s: %v", src.MappingFile, err)
			case len(names) >= numClasses:
				return names[:numClasses]
			default:
				return append(names, labels.Default(numClasses)[len(names):]...)
			}
		}
	}
	return labels.Default(numClasses)
}
