package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/handwriting-api/internal/glyph"
)

type fakeClassifier struct {
	calls  int
	inputs [][]float32
	err    error
}

func (f *fakeClassifier) Predict(input []float32) ([]float32, error) {
	f.calls++
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.6, 0.3}, nil
}

func (f *fakeClassifier) Layout() glyph.Layout { return glyph.Flat }
func (f *fakeClassifier) Classes() []string    { return []string{"zero", "one", "two"} }

func newScheduler(c *fakeClassifier, results *[]Result) *Scheduler {
	return New(c, Config{Width: 200, Height: 200, PenWidth: 12}, func(r Result) {
		*results = append(*results, r)
	})
}

// gesture returns n movements along a vertical line, one every step.
func gesture(start time.Duration, n int, step time.Duration) []Timed {
	var events []Timed
	for i := range n {
		events = append(events, Timed{
			At:    start + time.Duration(i)*step,
			Event: Move{X: 100, Y: float32(40 + 10*i)},
		})
	}
	return events
}

func TestTransitions(t *testing.T) {
	c := &fakeClassifier{}
	var results []Result
	s := newScheduler(c, &results)
	require.Equal(t, Idle, s.State())

	s.Handle(Move{X: 10, Y: 10})
	assert.Equal(t, Throttled, s.State())
	assert.Equal(t, 1, c.calls)
	assert.True(t, s.takeArm(), "entering the throttled state arms the timer")
	assert.False(t, s.takeArm())

	s.Handle(Move{X: 20, Y: 20})
	assert.Equal(t, Throttled, s.State())
	assert.Equal(t, 1, c.calls, "throttled movement must not predict")

	s.Handle(Expire{})
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, 1, c.calls, "expiry alone must not predict")

	s.Handle(Expire{})
	assert.Equal(t, Idle, s.State(), "stray expiry is harmless")

	s.Handle(Move{X: 30, Y: 30})
	assert.Equal(t, 2, c.calls)
	assert.Equal(t, Throttled, s.State())
	assert.True(t, s.takeArm())

	s.Handle(Release{})
	assert.Equal(t, 3, c.calls, "release always predicts")
	assert.Equal(t, Throttled, s.State(), "release doesn't touch the throttle")
	assert.False(t, s.takeArm(), "release doesn't arm the timer")

	require.Len(t, results, 3)
	assert.False(t, results[1].Final)
	assert.True(t, results[2].Final)
	top, ok := results[2].Ranking.Top()
	require.True(t, ok)
	assert.Equal(t, "one", top.Label)
}

func TestReplayThrottlesBurst(t *testing.T) {
	c := &fakeClassifier{}
	var results []Result
	s := newScheduler(c, &results)

	// Ten movements within 100ms, then an immediate release.
	events := gesture(0, 10, 10*time.Millisecond)
	events = append(events, Timed{At: 95 * time.Millisecond, Event: Release{}})
	s.Replay(events)

	assert.Equal(t, 2, c.calls)
	assert.Equal(t, 2, s.Predictions())
	require.Len(t, results, 2)
	assert.True(t, results[1].Final)
	assert.False(t, results[1].Glyph.IsBlank(), "the release sees the whole stroke")
}

func TestReplayPredictsAgainAfterCooldown(t *testing.T) {
	c := &fakeClassifier{}
	var results []Result
	s := newScheduler(c, &results)

	// 25 movements 10ms apart: predictions at 0, 100 and 200ms.
	events := gesture(0, 25, 10*time.Millisecond)
	events = append(events, Timed{At: 250 * time.Millisecond, Event: Release{}})
	s.Replay(events)
	assert.Equal(t, 4, c.calls)
}

func TestStrokesFollowGestures(t *testing.T) {
	c := &fakeClassifier{}
	var results []Result
	s := newScheduler(c, &results)

	// A lone movement only anchors the stroke: the first prediction sees a blank glyph.
	s.Handle(Move{X: 50, Y: 50})
	require.Len(t, results, 1)
	assert.True(t, results[0].Glyph.IsBlank())

	s.Handle(Move{X: 50, Y: 150})
	s.Handle(Release{})
	require.Len(t, results, 2)
	assert.False(t, results[1].Glyph.IsBlank())

	// After a release the next movement starts a new stroke rather than joining the last point.
	before := s.Canvas().Raster()
	s.Handle(Move{X: 180, Y: 20})
	assert.Equal(t, before.Pix, s.Canvas().Raster().Pix)

	s.Handle(Clear{})
	require.Len(t, results, 3)
	assert.True(t, results[2].Cleared)
	s.Handle(Release{})
	assert.True(t, results[3].Glyph.IsBlank())
}

func TestPredictionErrorsAreSwallowed(t *testing.T) {
	c := &fakeClassifier{err: errors.New("session closed")}
	var results []Result
	s := newScheduler(c, &results)

	s.Handle(Move{X: 10, Y: 10})
	s.Handle(Release{})
	assert.Equal(t, 2, c.calls)
	assert.Empty(t, results)
	assert.Equal(t, Throttled, s.State())
}

func TestClassifierInputIsTheNormalizedGlyph(t *testing.T) {
	c := &fakeClassifier{}
	var results []Result
	s := newScheduler(c, &results)

	s.Handle(Move{X: 100, Y: 20})
	s.Handle(Move{X: 100, Y: 180})
	s.Handle(Release{})

	require.Len(t, c.inputs, 2)
	assert.Equal(t, results[1].Glyph.Input(), c.inputs[1])
	assert.Len(t, c.inputs[1], glyph.Size*glyph.Size)
}

func TestRun(t *testing.T) {
	c := &fakeClassifier{}
	var results []Result
	s := New(c, Config{Cooldown: time.Hour, Width: 100, Height: 100}, func(r Result) {
		results = append(results, r)
	})

	events := make(chan Event, 16)
	for i := range 10 {
		events <- Move{X: 50, Y: float32(10 + 5*i)}
	}
	events <- Release{}
	close(events)

	require.NoError(t, s.Run(context.Background(), events))
	assert.Equal(t, 2, c.calls)
	assert.Len(t, results, 2)
}

func TestRunTimerExpires(t *testing.T) {
	c := &fakeClassifier{}
	s := New(c, Config{Cooldown: 5 * time.Millisecond, Width: 100, Height: 100}, nil)

	events := make(chan Event)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, events) }()

	events <- Move{X: 10, Y: 10}
	time.Sleep(50 * time.Millisecond)
	events <- Move{X: 20, Y: 20}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 2, c.calls, "the second movement comes after the cool-down")
}

func TestReadNDJSON(t *testing.T) {
	input := `{"t":0,"type":"move","x":10,"y":12}
{"t":16,"type":"move","x":11,"y":30,"width":40}

{"t":40,"type":"release"}
{"t":41,"type":"clear"}
`
	events, err := ReadNDJSON(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, Move{X: 11, Y: 30, Width: 40}, events[1].Event)
	assert.Equal(t, 16*time.Millisecond, events[1].At)
	assert.Equal(t, Release{}, events[2].Event)
	assert.Equal(t, Clear{}, events[3].Event)

	_, err = ReadNDJSON(strings.NewReader(`{"t":0,"type":"hover"}`))
	assert.Error(t, err)
	_, err = ReadNDJSON(strings.NewReader("{\"t\":5,\"type\":\"move\"}\n{\"t\":1,\"type\":\"release\"}"))
	assert.Error(t, err)
	_, err = ReadNDJSON(strings.NewReader("{"))
	assert.Error(t, err)
}
