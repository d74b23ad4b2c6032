package eventstore

import "time"

// Event is one journal row: something the installer did during a run.
type Event interface {
	// ID is the row sequence number, zero until stored.
	ID() int64
	RunID() string
	Type() string
	// Subject names what the event is about: a package, job, fragment or mode.
	Subject() string
	Timestamp() time.Time
	// Payload is the JSON encoded event body.
	Payload() []byte
}

// Record is the stored form of an Event.
type Record struct {
	Seq   int64
	Run   string
	Kind  string
	About string
	At    time.Time
	Body  []byte
}

func (r *Record) ID() int64            { return r.Seq }
func (r *Record) RunID() string        { return r.Run }
func (r *Record) Type() string         { return r.Kind }
func (r *Record) Subject() string      { return r.About }
func (r *Record) Timestamp() time.Time { return r.At }
func (r *Record) Payload() []byte      { return r.Body }
