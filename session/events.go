package session

import (
	"bytes"
	"fmt"
)

// EventKind names the record kinds §4.5 "events" knows how to
// translate; any other kind present in a session's record archive is
// ignored.
type EventKind string

const (
	EventNote  EventKind = "Note"
	EventEpoch EventKind = "Epoch"
)

// EventRecord is one row of a session's record archive (§1: the
// archive's own format is out of scope; this is the shape events.go
// needs to emit a line). DurationUUTC and Type apply only to
// EventEpoch.
type EventRecord struct {
	TimeUUTC     int64
	Kind         EventKind
	DurationUUTC int64
	Type         string
	Text         string
}

// eventsBytes renders records as the events file's lines (§4.5, §6
// events): "time,Note,text" for notes, "time,Epoch,duration,type,text"
// for epochs, skipping everything else.
func eventsBytes(records []EventRecord) []byte {
	var buf bytes.Buffer
	for _, r := range records {
		switch r.Kind {
		case EventNote:
			fmt.Fprintf(&buf, "%d,Note,%s\n", r.TimeUUTC, r.Text)
		case EventEpoch:
			fmt.Fprintf(&buf, "%d,Epoch,%d,%s,%s\n", r.TimeUUTC, r.DurationUUTC, r.Type, r.Text)
		}
	}
	return buf.Bytes()
}
