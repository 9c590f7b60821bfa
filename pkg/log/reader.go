package log

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects log events. Empty/nil fields match everything.
type Filter struct {
	// TransitionID matches one transition exactly.
	TransitionID string

	// Node matches events targeting this clock, or forecasts offered to it.
	Node string

	// Operation filters by request type.
	Operation *Operation

	// Category filters by event category.
	Category *Category

	// Phase filters phase and error events by transition state.
	Phase *Phase

	// TimeStart filters events at or after this time.
	TimeStart *time.Time

	// TimeEnd filters events before this time.
	TimeEnd *time.Time
}

func (f *Filter) matches(event Event) bool {
	if f.TransitionID != "" && event.TransitionID != f.TransitionID {
		return false
	}
	if f.Node != "" && event.Node != f.Node {
		if event.Forecast == nil || event.Forecast.Descendant != f.Node {
			return false
		}
	}
	if f.Operation != nil && event.Operation != *f.Operation {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.Phase != nil {
		switch {
		case event.Phase != nil:
			if event.Phase.Phase != *f.Phase {
				return false
			}
		case event.Error != nil:
			if event.Error.Phase != *f.Phase {
				return false
			}
		default:
			return false
		}
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	return true
}

// Reader streams events from a log file.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader creates a Reader that returns every event in the file.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader creates a Reader that returns events matching filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: NewDecoder(f),
		filter:  filter,
	}, nil
}

// Next returns the next matching event, or io.EOF at the end of the file.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			return Event{}, err
		}
		if r.filter.matches(event) {
			return event, nil
		}
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
