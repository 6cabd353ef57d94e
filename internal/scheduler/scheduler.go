// Package scheduler decides when the drawing in progress is classified. Movement events
// trigger a prediction at most once per cool-down interval; releasing the pen always
// triggers one, so the final stroke of a gesture is never missed.
//
// A Scheduler processes a single serial stream of events and is not safe for concurrent use.
package scheduler

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	"github.com/Brownie44l1/handwriting-api/internal/glyph"
	"github.com/Brownie44l1/handwriting-api/internal/model"
	"github.com/Brownie44l1/handwriting-api/internal/raster"
)

// DefaultCooldown is the minimum interval between two predictions triggered by movement.
const DefaultCooldown = 100 * time.Millisecond

// State of the throttle.
type State int

const (
	// Idle accepts the next movement as a prediction trigger.
	Idle State = iota
	// Throttled suppresses movement-triggered predictions until the cool-down expires.
	Throttled
)

func (s State) String() string {
	if s == Throttled {
		return "throttled"
	}
	return "idle"
}

// Result is what a prediction produced.
type Result struct {
	Glyph   glyph.Glyph
	Ranking model.Ranking
	// Final is set for the prediction made when the pen was released.
	Final bool
	// Cleared is set, with an empty ranking, when the surface was wiped.
	Cleared bool
}

// Config of a Scheduler. Zero values take the defaults.
type Config struct {
	Cooldown      time.Duration
	Width, Height int
	PenWidth      float32
}

// Scheduler accumulates strokes on a canvas and runs the classifier on them.
type Scheduler struct {
	classifier model.Classifier
	canvas     *raster.Canvas
	cooldown   time.Duration
	penWidth   float32
	onResult   func(Result)

	state State
	// arm is set when a cool-down has to be started.
	arm         bool
	last        raster.Point
	drawing     bool
	predictions int
}

// New creates a scheduler feeding classifier and reporting every result to onResult.
func New(classifier model.Classifier, cfg Config, onResult func(Result)) *Scheduler {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Width <= 0 {
		cfg.Width = raster.DefaultSize
	}
	if cfg.Height <= 0 {
		cfg.Height = raster.DefaultSize
	}
	if cfg.PenWidth <= 0 {
		cfg.PenWidth = raster.DefaultPenWidth
	}
	return &Scheduler{
		classifier: classifier,
		canvas:     raster.NewCanvas(cfg.Width, cfg.Height),
		cooldown:   cfg.Cooldown,
		penWidth:   cfg.PenWidth,
		onResult:   onResult,
	}
}

// State returns the current throttle state.
func (s *Scheduler) State() State { return s.state }

// Predictions returns how many times the classifier was invoked.
func (s *Scheduler) Predictions() int { return s.predictions }

// Cooldown returns the configured cool-down interval.
func (s *Scheduler) Cooldown() time.Duration { return s.cooldown }

// Canvas is the drawing surface of the scheduler.
func (s *Scheduler) Canvas() *raster.Canvas { return s.canvas }

// Handle processes one event to completion.
func (s *Scheduler) Handle(ev Event) {
	switch ev := ev.(type) {
	case Move:
		s.move(ev)
	case Release:
		s.drawing = false
		s.predict(true)
	case Expire:
		if s.state == Throttled {
			s.state = Idle
		}
	case Clear:
		s.canvas.Clear()
		s.drawing = false
		if s.onResult != nil {
			s.onResult(Result{Cleared: true})
		}
	default:
		klog.Warningf("scheduler: ignoring unknown event %T", ev)
	}
}

func (s *Scheduler) move(m Move) {
	p := raster.Point{X: m.X, Y: m.Y}
	if s.drawing {
		width := m.Width
		if width <= 0 {
			width = s.penWidth
		}
		s.canvas.Stroke(s.last, p, width, m.Erase)
	}
	s.last, s.drawing = p, true

	if s.state == Idle {
		s.predict(false)
		s.state = Throttled
		s.arm = true
	}
}

// takeArm reports, once, that a cool-down timer must be started.
func (s *Scheduler) takeArm() bool {
	arm := s.arm
	s.arm = false
	return arm
}

// predict runs normalize, classify and report. Failures are logged and never propagated.
func (s *Scheduler) predict(final bool) {
	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("scheduler: prediction panicked: %v", r)
		}
	}()
	g := glyph.Normalize(s.canvas.Raster())
	s.predictions++
	probs, err := s.classifier.Predict(g.Input())
	if err != nil {
		klog.Warningf("scheduler: prediction failed: %v", err)
		return
	}
	res := Result{Glyph: g, Ranking: model.Rank(probs, s.classifier.Classes()), Final: final}
	if top, ok := res.Ranking.Top(); ok {
		klog.V(1).Infof("prediction #%d: %q (%.2f%%), final=%v", s.predictions, top.Label, 100*top.Probability, final)
	}
	if s.onResult != nil {
		s.onResult(res)
	}
}

// Run processes events until the channel is closed or ctx is done. The cool-down timer
// expires through the same loop, so events are always handled one at a time.
func (s *Scheduler) Run(ctx context.Context, events <-chan Event) error {
	timer := time.NewTimer(s.cooldown)
	timer.Stop()
	defer timer.Stop()

	var expired <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.Handle(ev)
		case <-expired:
			expired = nil
			s.Handle(Expire{})
		}
		if s.takeArm() {
			timer.Reset(s.cooldown)
			expired = timer.C
		}
	}
}

// Replay plays back a recording, delivering Expire whenever an event's timestamp reaches
// the end of a pending cool-down. Timestamps must not decrease.
func (s *Scheduler) Replay(events []Timed) {
	var deadline time.Duration
	armed := false
	for _, te := range events {
		if armed && te.At >= deadline {
			armed = false
			s.Handle(Expire{})
		}
		s.Handle(te.Event)
		if s.takeArm() {
			deadline, armed = te.At+s.cooldown, true
		}
	}
}
