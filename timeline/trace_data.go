// Package timeline holds collected trace data, partitioned by the subsystem
// that produced it.
package timeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// TraceDataPart identifies one partition of the trace data.
type TraceDataPart string

// ChromeTracePart holds the events delivered by the browser's tracing
// subsystem. Its name is the top-level key of the Trace Event Format.
const ChromeTracePart TraceDataPart = "traceEvents"

// ErrAlreadyBuilt is returned by a TraceDataBuilder used after AsData.
var ErrAlreadyBuilt = errors.New("trace data can only be built once")

// TraceDataSink receives collected events.
type TraceDataSink interface {
	AddEventsTo(part TraceDataPart, events []interface{}) error
}

// TraceDataBuilder accumulates events until AsData is called.
type TraceDataBuilder struct {
	parts map[TraceDataPart][]interface{}
	built bool
}

var _ TraceDataSink = &TraceDataBuilder{}

// NewTraceDataBuilder returns an empty builder.
func NewTraceDataBuilder() *TraceDataBuilder {
	return &TraceDataBuilder{parts: make(map[TraceDataPart][]interface{})}
}

// AddEventsTo appends events to part. Adding an empty slice still marks the
// part as present.
func (b *TraceDataBuilder) AddEventsTo(part TraceDataPart, events []interface{}) error {
	if b.built {
		return ErrAlreadyBuilt
	}
	if part == "" {
		return fmt.Errorf("trace data part must not be empty")
	}
	b.parts[part] = append(b.parts[part], events...)
	if b.parts[part] == nil {
		b.parts[part] = []interface{}{}
	}
	return nil
}

// AsData hands the accumulated events over to a TraceData. The builder is
// unusable afterwards.
func (b *TraceDataBuilder) AsData() (*TraceData, error) {
	if b.built {
		return nil, ErrAlreadyBuilt
	}
	b.built = true
	td := &TraceData{parts: b.parts}
	b.parts = nil
	return td, nil
}

// TraceData is the immutable result of a tracing run.
type TraceData struct {
	parts map[TraceDataPart][]interface{}
}

// HasEventsFor reports whether part was ever added, even empty.
func (td *TraceData) HasEventsFor(part TraceDataPart) bool {
	_, ok := td.parts[part]
	return ok
}

// EventsFor returns the events of part in arrival order.
func (td *TraceData) EventsFor(part TraceDataPart) []interface{} {
	return td.parts[part]
}

// Parts returns the names of all present parts, sorted.
func (td *TraceData) Parts() []TraceDataPart {
	parts := make([]TraceDataPart, 0, len(td.parts))
	for p := range td.parts {
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i] < parts[j] })
	return parts
}

// Serialize writes the data as a JSON object with one array per part, which
// is what chrome://tracing and Perfetto load.
func (td *TraceData) Serialize(w io.Writer) error {
	out := make(map[TraceDataPart][]interface{}, len(td.parts))
	for p, events := range td.parts {
		out[p] = events
	}
	if _, ok := out[ChromeTracePart]; !ok {
		out[ChromeTracePart] = []interface{}{}
	}
	return json.NewEncoder(w).Encode(out)
}
