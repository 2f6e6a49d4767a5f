package journal

import (
	"bytes"
	"time"

	"github.com/ugorji/go/codec"
)

// Kinds of journal entries.
const (
	KindState     = "state"
	KindBootstrap = "bootstrap"
	KindCommand   = "command"
	KindNode      = "node"
	KindFailure   = "failure"
	KindSignal    = "signal"
)

// Entry is one event of a session.
type Entry struct {
	Seq     uint64
	Time    int64
	Session string
	Kind    string
	Subject string
	Detail  string
}

// At returns the time the entry was recorded.
func (e *Entry) At() time.Time {
	return time.Unix(0, e.Time)
}

// Marshal - json encoding of Entry
func (e *Entry) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(e); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (e *Entry) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(e)
}
