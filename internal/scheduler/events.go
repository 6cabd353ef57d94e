package scheduler

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Event is one input of the scheduler: Move, Release, Clear or Expire.
type Event interface {
	isEvent()
}

// Move is a pointer movement while the pen is down.
type Move struct {
	X, Y float32
	// Width of the stroke leading to this point, 0 for the default pen width.
	Width float32
	Erase bool
}

// Release ends the current gesture.
type Release struct{}

// Clear wipes the surface.
type Clear struct{}

// Expire signals the end of the cool-down interval.
type Expire struct{}

func (Move) isEvent()    {}
func (Release) isEvent() {}
func (Clear) isEvent()   {}
func (Expire) isEvent()  {}

// Timed is an event with its offset from the start of a recording.
type Timed struct {
	At    time.Duration
	Event Event
}

// Record is the JSON form of a timed event, e.g.
//
//	{"t": 16, "type": "move", "x": 120, "y": 48}
//
// t is in milliseconds.
type Record struct {
	T     int64   `json:"t"`
	Type  string  `json:"type"`
	X     float32 `json:"x,omitempty"`
	Y     float32 `json:"y,omitempty"`
	Width float32 `json:"width,omitempty"`
	Erase bool    `json:"erase,omitempty"`
}

// Timed converts the record into an event.
func (r Record) Timed() (Timed, error) {
	te := Timed{At: time.Duration(r.T) * time.Millisecond}
	switch strings.ToLower(r.Type) {
	case "move":
		te.Event = Move{X: r.X, Y: r.Y, Width: r.Width, Erase: r.Erase}
	case "release":
		te.Event = Release{}
	case "clear":
		te.Event = Clear{}
	default:
		return te, errors.Errorf("unknown event type %q", r.Type)
	}
	return te, nil
}

// ParseRecords converts records into timed events, checking their timestamps don't go back.
func ParseRecords(records []Record) ([]Timed, error) {
	events := make([]Timed, 0, len(records))
	for i, r := range records {
		te, err := r.Timed()
		if err != nil {
			return nil, errors.WithMessagef(err, "event %d", i)
		}
		if i > 0 && te.At < events[i-1].At {
			return nil, errors.Errorf("event %d: timestamp %dms is before the previous one", i, r.T)
		}
		events = append(events, te)
	}
	return events, nil
}

// ReadNDJSON reads one Record per line.
func ReadNDJSON(r io.Reader) ([]Timed, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed reading events")
	}
	return ParseRecords(records)
}
