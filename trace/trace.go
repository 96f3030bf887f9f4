// Package trace records the outcomes a scheduled radio delivers.
package trace

import (
	"bufio"
	"encoding/hex"
	"io"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rigado/radio"
)

// Record is one delivered outcome.
type Record struct {
	Seq     int    `json:"seq"`
	Outcome string `json:"outcome"`
	Time    uint32 `json:"time_us"`
	Data    string `json:"data,omitempty"`
}

// Recorder is a radio.Callbacks that records every outcome before passing it
// on to the wrapped callbacks.
type Recorder struct {
	next  radio.Callbacks
	clock func() radio.Instant

	lock    sync.RWMutex
	records []Record
}

// New returns a recorder forwarding to next. clock, typically the driver's
// Now, timestamps records and may be nil.
func New(next radio.Callbacks, clock func() radio.Instant) *Recorder {
	if next == nil {
		next = radio.CallbackFuncs{}
	}
	return &Recorder{next: next, clock: clock}
}

func (r *Recorder) add(o radio.Outcome, data radio.ReadBuffer) {
	r.lock.Lock()
	defer r.lock.Unlock()

	rec := Record{
		Seq:     len(r.records) + 1,
		Outcome: o.String(),
	}
	if r.clock != nil {
		rec.Time = uint32(r.clock())
	}
	if len(data) > 0 {
		rec.Data = hex.EncodeToString(data)
	}
	r.records = append(r.records, rec)
}

func (r *Recorder) AdvertisingReceived(data radio.ReadBuffer) {
	r.add(radio.OutcomeAdvertisingReceived, data)
	r.next.AdvertisingReceived(data)
}

func (r *Recorder) AdvertisingTimeout() {
	r.add(radio.OutcomeAdvertisingTimeout, nil)
	r.next.AdvertisingTimeout()
}

func (r *Recorder) ConnectionTimeout() {
	r.add(radio.OutcomeConnectionTimeout, nil)
	r.next.ConnectionTimeout()
}

func (r *Recorder) ConnectionEventEnd() {
	r.add(radio.OutcomeConnectionEventEnd, nil)
	r.next.ConnectionEventEnd()
}

// Records returns a copy of the records so far.
func (r *Recorder) Records() []Record {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return append([]Record(nil), r.records...)
}

// Counts returns the number of records per outcome.
func (r *Recorder) Counts() map[string]int {
	r.lock.RLock()
	defer r.lock.RUnlock()

	m := make(map[string]int)
	for _, rec := range r.records {
		m[rec.Outcome]++
	}
	return m
}

// WriteJSON writes one JSON object per record.
func (r *Recorder) WriteJSON(w io.Writer) error {
	enc := jsoniter.NewEncoder(w)
	for _, rec := range r.Records() {
		if err := enc.Encode(rec); err != nil {
			return errors.Wrap(err, "can't encode record")
		}
	}
	return nil
}

// Store writes the records to filename.
func (r *Recorder) Store(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := r.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadJSON reads records written by WriteJSON.
func ReadJSON(rd io.Reader) ([]Record, error) {
	var out []Record
	s := bufio.NewScanner(rd)
	for s.Scan() {
		if len(s.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := jsoniter.Unmarshal(s.Bytes(), &rec); err != nil {
			return nil, errors.Wrapf(err, "record %d", len(out)+1)
		}
		out = append(out, rec)
	}
	return out, s.Err()
}

// Load reads records stored with Store.
func Load(filename string) ([]Record, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadJSON(f)
}
