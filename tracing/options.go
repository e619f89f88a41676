package tracing

import (
	"fmt"

	"github.com/mailru/easyjson/jwriter"
)

// RecordMode decides what the browser does once its trace buffer is full.
type RecordMode string

// Record modes, spelled the way the DevTools protocol expects them.
const (
	RecordUntilFull        RecordMode = "record-until-full"
	RecordAsMuchAsPossible RecordMode = "record-as-much-as-possible"
)

// ParseRecordMode accepts the protocol spelling of a record mode.
func ParseRecordMode(s string) (RecordMode, error) {
	switch m := RecordMode(s); m {
	case RecordUntilFull, RecordAsMuchAsPossible:
		return m, nil
	default:
		return "", fmt.Errorf("unknown tracing record mode %q, expected %q or %q",
			s, RecordUntilFull, RecordAsMuchAsPossible)
	}
}

// Options configures a tracing run.
type Options struct {
	RecordMode RecordMode
}

// DefaultOptions records until the trace buffer is full.
func DefaultOptions() Options {
	return Options{RecordMode: RecordUntilFull}
}

// startParams are the Tracing.start command params. The browser ignores an
// options value it does not know and falls back to record-until-full.
type startParams struct {
	Options    string
	Categories string
}

// MarshalEasyJSON implements easyjson.Marshaler.
func (p startParams) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	w.RawString(`"options":`)
	w.String(p.Options)
	if p.Categories != "" {
		w.RawString(`,"categories":`)
		w.String(p.Categories)
	}
	w.RawByte('}')
}
