// ingest downloads a handwriting dataset, assembles its train/validation/test split and reports
// what it got. Optionally it exports one test sample, renormalized, as a still image.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Brownie44l1/handwriting-api/internal/dataset"
	"github.com/Brownie44l1/handwriting-api/internal/glyph"
)

var (
	flagSource = flag.String("source", "mnist", "Dataset to load: mnist or emnist.")
	flagSplit  = flag.String("split", "letters", "EMNIST split, ignored for mnist.")
	flagLayout = flag.String("layout", "flat", "Sample layout: flat (784 values) or channel (1x28x28).")
	flagData   = flag.String("data", "~/tmp/handwriting", "Directory where datasets are cached.")
	flagExport = flag.Int("export", -1, "If >= 0, export this test sample to -output.")
	flagOutput = flag.String("output", glyph.DefaultExportPath, "Where -export writes the sample.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	err := exceptions.TryCatch[error](func() { ingest(ctx) })
	if err != nil {
		klog.Errorf("Failed: %+v", err)
		klog.Flush()
		os.Exit(1)
	}
}

func ingest(ctx context.Context) {
	src := must.M1(dataset.Lookup(*flagSource, *flagSplit))
	layout := must.M1(glyph.ParseLayout(*flagLayout))

	split := must.M1(dataset.Load(ctx, src, *flagData, layout))
	sampleSize := 1
	for _, d := range split.Train.Dims {
		sampleSize *= d
	}
	total := split.Train.Len() + split.Validation.Len() + split.Test.Len()
	klog.Infof("%s (%s layout, %v per sample): %s train, %s validation, %s test, %d classes, %s in memory",
		src.Name, layout, split.Train.Dims,
		humanize.Comma(int64(split.Train.Len())),
		humanize.Comma(int64(split.Validation.Len())),
		humanize.Comma(int64(split.Test.Len())),
		split.NumClasses,
		humanize.Bytes(uint64(total*(sampleSize+split.NumClasses)*4)))
	klog.V(1).Infof("Classes: %v", split.Classes)

	if *flagExport < 0 {
		return
	}
	if *flagExport >= split.Test.Len() {
		exceptions.Panicf("-export=%d out of range, the test set has %d samples", *flagExport, split.Test.Len())
	}
	label := argmax(split.Test.Labels[*flagExport])
	g := glyph.Normalize(sampleImage(split.Test.Samples[*flagExport]))
	must.M(errors.WithMessagef(glyph.Save(g, *flagOutput), "exporting test sample %d", *flagExport))
	fmt.Printf("Test sample %d (class %q) written to %s\n", *flagExport, split.Classes[label], *flagOutput)
}

// sampleImage turns an assembled sample, whatever its layout, back into a 28x28 image.
func sampleImage(sample []float32) image.Image {
	img := image.NewGray(image.Rect(0, 0, glyph.Size, glyph.Size))
	for i, v := range sample[:len(img.Pix)] {
		img.Pix[i] = uint8(min(max(v, 0), 1)*255 + 0.5)
	}
	return img
}

func argmax(oneHot []float32) int {
	best := 0
	for i, v := range oneHot {
		if v > oneHot[best] {
			best = i
		}
	}
	return best
}
