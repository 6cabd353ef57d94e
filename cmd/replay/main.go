// replay plays a recorded gesture, one JSON event per line, through the prediction scheduler
// and prints every ranking it produces.
//
//	replay -models ./models gesture.ndjson
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Brownie44l1/handwriting-api/internal/glyph"
	"github.com/Brownie44l1/handwriting-api/internal/model"
	"github.com/Brownie44l1/handwriting-api/internal/render"
	"github.com/Brownie44l1/handwriting-api/internal/scheduler"
)

var (
	flagModels   = flag.String("models", "models", "Directory holding model.onnx and model_metadata.json.")
	flagRuntime  = flag.String("onnxruntime", "", "Path to the onnxruntime shared library, if not in the default location.")
	flagCooldown = flag.Duration("cooldown", scheduler.DefaultCooldown, "Minimum time between two predictions while drawing.")
	flagTop      = flag.Int("top", 5, "Number of classes to print for each prediction, 0 for all.")
	flagLive     = flag.Bool("live", false, "Play the events with their recorded timing, on a real clock.")
	flagExport   = flag.String("export", "", "If set, save the glyph of the last prediction there.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if flag.NArg() != 1 {
		klog.Errorf("Expected exactly one gesture file, got %d arguments. See 'replay -help'.", flag.NArg())
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	err := exceptions.TryCatch[error](func() { replay(ctx, flag.Arg(0)) })
	if err != nil {
		klog.Errorf("Failed: %+v", err)
		klog.Flush()
		os.Exit(1)
	}
}

func replay(ctx context.Context, path string) {
	f := must.M1(os.Open(path))
	events, err := scheduler.ReadNDJSON(f)
	_ = f.Close()
	must.M(errors.WithMessagef(err, "reading %s", path))

	model.SetSharedLibrary(*flagRuntime)
	classifier := must.M1(model.NewServer(
		filepath.Join(*flagModels, "model.onnx"),
		filepath.Join(*flagModels, "model_metadata.json")))
	defer classifier.Close()

	var (
		last  glyph.Glyph
		count int
	)
	s := scheduler.New(classifier, scheduler.Config{Cooldown: *flagCooldown}, func(res scheduler.Result) {
		if res.Cleared {
			fmt.Println("-- cleared --")
			return
		}
		count++
		last = res.Glyph
		kind := "drawing"
		if res.Final {
			kind = "released"
		}
		fmt.Printf("#%d (%s)\n%s\n", count, kind, render.Side(res.Glyph, res.Ranking, *flagTop))
	})

	if *flagLive {
		must.M(playLive(ctx, s, events))
	} else {
		s.Replay(events)
	}
	klog.Infof("%d events, %d predictions", len(events), s.Predictions())

	if *flagExport != "" && count > 0 {
		must.M(glyph.Save(last, *flagExport))
		klog.Infof("Last glyph saved to %s", *flagExport)
	}
}

// playLive feeds the events to the scheduler's own loop, sleeping until each one is due.
func playLive(ctx context.Context, s *scheduler.Scheduler, events []scheduler.Timed) error {
	ch := make(chan scheduler.Event)
	go func() {
		defer close(ch)
		start := time.Now()
		for _, ev := range events {
			select {
			case <-time.After(time.Until(start.Add(ev.At))):
			case <-ctx.Done():
				return
			}
			select {
			case ch <- ev.Event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return s.Run(ctx, ch)
}
