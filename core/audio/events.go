package audio

// Event is one entry in a download's event sequence: StageEvent,
// ProgressEvent, or the terminal DoneEvent.
type Event interface {
	isEvent()
}

// StageEvent describes the phase a download has entered.
type StageEvent struct {
	Message string
}

// ProgressField marks which ProgressEvent fields carry a value.
type ProgressField uint8

const (
	ProgressCurrent ProgressField = 1 << iota
	ProgressTotal
)

// ProgressEvent reports decoded audio in milliseconds. Either field may be
// absent, in which case the consumer keeps its previous value.
type ProgressEvent struct {
	Current int64
	Total   int64
	Fields  ProgressField
}

func (e ProgressEvent) HasCurrent() bool { return e.Fields&ProgressCurrent != 0 }
func (e ProgressEvent) HasTotal() bool   { return e.Fields&ProgressTotal != 0 }

// DoneEvent ends a sequence. Err is nil on success. Path is set whenever the
// output file exists, including when cover art failed.
type DoneEvent struct {
	Path string
	Err  error
}

func (StageEvent) isEvent()    {}
func (ProgressEvent) isEvent() {}
func (DoneEvent) isEvent()     {}

func stage(msg string) StageEvent {
	return StageEvent{Message: msg}
}

func progressTotal(total int64) ProgressEvent {
	return ProgressEvent{Total: total, Fields: ProgressTotal}
}

func progressBoth(current, total int64) ProgressEvent {
	return ProgressEvent{Current: current, Total: total, Fields: ProgressCurrent | ProgressTotal}
}
