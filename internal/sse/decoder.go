// Package sse implements a push-style Server-Sent Events decoder.
//
// The caller feeds arbitrary byte chunks via Feed; the decoder is correct
// across any chunking of the input, including splits mid-line, mid-field,
// or mid-terminator. It performs no I/O itself.
package sse

import (
	"bytes"
	"errors"
)

// maxPendingEvent bounds the accumulated size of one not-yet-dispatched
// event block. Exceeding it is a protocol violation, not a transient
// condition, so the decoder reports it and refuses to buffer further.
const maxPendingEvent = 1 << 20 // 1 MiB

// ErrOverflow is returned by Feed when a pending event exceeds maxPendingEvent
// before a blank line terminates it.
var ErrOverflow = errors.New("sse: pending event exceeds buffer cap")

// Event is a fully framed SSE event: a name (possibly empty) and its
// concatenated data payload (possibly empty).
type Event struct {
	Name string
	Data string
}

// Decoder turns a byte stream into a sequence of Events. Zero value is not
// usable; construct with New. A Decoder is not safe for concurrent use and
// is not restartable once Close/error has occurred — construct a new one.
type Decoder struct {
	// line accumulates bytes for the line currently being read.
	line []byte
	// pendingName/pendingData accumulate fields for the event block in
	// progress, reset on a blank-line terminator.
	pendingName string
	pendingData bytes.Buffer
	sawData     bool
	pendingSize int
	closed      bool
	// pendingCR records that the previous Feed call ended on a bare '\r'
	// whose terminator status is still undecided: if this Feed begins
	// with '\n', the two bytes are one CRLF terminator straddling the
	// chunk boundary, not a second (blank-line) terminator.
	pendingCR bool
}

// New constructs a fresh decoder.
func New() *Decoder {
	return &Decoder{}
}

// Feed appends chunk to the decoder's internal state and returns any Events
// completed as a result. It is safe to call Feed with chunks of any size,
// including zero-length or chunks that split a line or field across calls.
func (d *Decoder) Feed(chunk []byte) ([]Event, error) {
	if d.closed {
		return nil, errors.New("sse: Feed called after Close")
	}
	var out []Event
	start := 0
	i := 0
	if d.pendingCR && len(chunk) > 0 {
		d.pendingCR = false
		if chunk[0] == '\n' {
			// The '\r' that ended the previous chunk and this chunk's
			// leading '\n' are one CRLF terminator; the line it ended
			// was already dispatched when the '\r' was seen, so just
			// skip this byte rather than treating it as a second,
			// blank-line terminator.
			i = 1
			start = 1
		}
	}
	for ; i < len(chunk); i++ {
		b := chunk[i]
		switch b {
		case '\n':
			d.line = append(d.line, chunk[start:i]...)
			ev, ok, err := d.consumeLine(d.line)
			if err != nil {
				return out, err
			}
			if ok {
				out = append(out, ev)
			}
			d.line = d.line[:0]
			start = i + 1
		case '\r':
			d.line = append(d.line, chunk[start:i]...)
			ev, ok, err := d.consumeLine(d.line)
			if err != nil {
				return out, err
			}
			if ok {
				out = append(out, ev)
			}
			d.line = d.line[:0]
			switch {
			case i+1 < len(chunk) && chunk[i+1] == '\n':
				// Swallow a following \n so CRLF counts as one terminator.
				i++
			case i+1 == len(chunk):
				// The chunk ends exactly on this '\r': whether it's a
				// bare CR terminator or the first half of a CRLF that
				// continues in the next chunk isn't decided yet.
				d.pendingCR = true
			}
			start = i + 1
		}
	}
	d.line = append(d.line, chunk[start:]...)
	if len(d.line) > maxPendingEvent {
		return out, ErrOverflow
	}
	return out, nil
}

// consumeLine processes one complete line (without its terminator) and
// returns a completed Event if the line was a blank-line block terminator.
func (d *Decoder) consumeLine(line []byte) (Event, bool, error) {
	if len(line) == 0 {
		return d.dispatch()
	}
	if line[0] == ':' {
		return Event{}, false, nil
	}

	field, value := splitField(line)
	switch field {
	case "event":
		d.pendingName = value
	case "data":
		if d.sawData {
			d.pendingData.WriteByte('\n')
		}
		d.pendingData.WriteString(value)
		d.sawData = true
		d.pendingSize += len(value) + 1
	default:
		// id/retry and any unrecognized field: ignored by this decoder,
		// since the agent loop has no use for them.
	}
	if d.pendingSize > maxPendingEvent {
		return Event{}, false, ErrOverflow
	}
	return Event{}, false, nil
}

// dispatch finalizes the in-progress event block, if it carried a data
// line or an event name, and resets block-scoped state.
func (d *Decoder) dispatch() (Event, bool, error) {
	if !d.sawData && d.pendingName == "" {
		return Event{}, false, nil
	}
	ev := Event{Name: d.pendingName, Data: d.pendingData.String()}
	d.pendingName = ""
	d.pendingData.Reset()
	d.sawData = false
	d.pendingSize = 0
	return ev, true, nil
}

// Close flushes any event left pending (end-of-stream per §4.1) and marks
// the decoder unusable for further Feed calls.
func (d *Decoder) Close() (*Event, error) {
	if d.closed {
		return nil, errors.New("sse: double Close")
	}
	d.closed = true
	if len(d.line) > 0 {
		ev, ok, err := d.consumeLine(d.line)
		d.line = nil
		if err != nil {
			return nil, err
		}
		if ok {
			return &ev, nil
		}
	}
	ev, ok, err := d.dispatch()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

// splitField parses a "field: value" or "field:value" line, stripping a
// single leading space from the value per the SSE spec.
func splitField(line []byte) (field, value string) {
	idx := bytes.IndexByte(line, ':')
	if idx < 0 {
		return string(line), ""
	}
	field = string(line[:idx])
	rest := line[idx+1:]
	if len(rest) > 0 && rest[0] == ' ' {
		rest = rest[1:]
	}
	return field, string(rest)
}
