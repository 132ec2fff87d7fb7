package broadcast

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/emberwatch-io/emberwatch/internal/models"
)

// DefaultQueueSize is the default per-observer outbound queue bound.
const DefaultQueueSize = 256

// Snapshotter supplies the full state for an attaching observer's init
// frame. The registry satisfies it.
type Snapshotter interface {
	List() []*models.Session
	Focus() string
	AutoCompact() bool
}

// Broadcaster is the fan-out hub. It implements registry.Notifier: each
// registry mutation becomes one frame, enqueued once per observer. A
// full observer queue drops that observer rather than stalling the hub.
type Broadcaster struct {
	mu        sync.Mutex
	observers map[string]*Observer
	queueSize int
	closed    bool

	diagnostic *LogBuffer
	process    *LogBuffer
	request    *LogBuffer
}

// Options configures a Broadcaster.
type Options struct {
	QueueSize      int // per-observer outbound bound, 0 for default
	LogBufferLines int // per-stream line capacity, 0 for default
}

// NewBroadcaster creates the hub with bounded log streams.
func NewBroadcaster(opts Options) *Broadcaster {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	return &Broadcaster{
		observers:  map[string]*Observer{},
		queueSize:  opts.QueueSize,
		diagnostic: NewLogBuffer(opts.LogBufferLines),
		process:    NewLogBuffer(opts.LogBufferLines),
		request:    NewLogBuffer(opts.LogBufferLines),
	}
}

// Observer is one attached connection's view of the hub: a bounded
// frame queue drained by the connection's writer.
type Observer struct {
	ID string

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []any
	bound  int
	closed bool
}

// Attach registers a new observer and seeds its queue with an init
// frame built from the snapshotter. The observer starts receiving
// mutation frames before the snapshot is taken, so a racing frame can
// describe state the init already contains; applying it again is
// harmless because every frame carries whole values.
func (b *Broadcaster) Attach(snap Snapshotter) *Observer {
	obs := &Observer{
		ID:    uuid.NewString(),
		bound: b.queueSize,
	}
	obs.cond = sync.NewCond(&obs.mu)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		obs.close()
		return obs
	}
	b.observers[obs.ID] = obs
	n := len(b.observers)
	b.mu.Unlock()

	init := &InitFrame{
		Type:        FrameInit,
		Sessions:    snap.List(),
		Focus:       snap.Focus(),
		AutoCompact: snap.AutoCompact(),
		Logs: map[string][]string{
			StreamDiagnostic: b.diagnostic.Lines(),
			StreamProcess:    b.process.Lines(),
			StreamRequest:    b.request.Lines(),
		},
	}
	obs.pushFront(init)

	log.Printf("[broadcast] observer %s attached (%d total)", obs.ID, n)
	return obs
}

// Detach removes an observer and wakes its writer.
func (b *Broadcaster) Detach(obs *Observer) {
	b.mu.Lock()
	delete(b.observers, obs.ID)
	b.mu.Unlock()
	obs.close()
}

// Close drops every observer. Attach after Close returns a closed
// observer whose Next reports done immediately.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	dropped := make([]*Observer, 0, len(b.observers))
	for _, obs := range b.observers {
		dropped = append(dropped, obs)
	}
	b.observers = map[string]*Observer{}
	b.mu.Unlock()

	for _, obs := range dropped {
		obs.close()
	}
}

// SessionUpdated implements registry.Notifier.
func (b *Broadcaster) SessionUpdated(s *models.Session) {
	b.fanOut(&SessionFrame{Type: FrameSession, Session: s})
}

// SessionRemoved implements registry.Notifier.
func (b *Broadcaster) SessionRemoved(id string) {
	b.fanOut(&SessionRemovedFrame{Type: FrameSessionRemoved, SessionID: id})
}

// FocusChanged implements registry.Notifier.
func (b *Broadcaster) FocusChanged(id string) {
	b.fanOut(&FocusChangedFrame{Type: FrameFocusChanged, SessionID: id})
}

// AutoCompactChanged implements registry.Notifier.
func (b *Broadcaster) AutoCompactChanged(enabled bool) {
	b.fanOut(&AutoCompactFrame{Type: FrameAutoCompact, Enabled: enabled})
}

// Diagnosticf appends to the diagnostic stream and mirrors the line to
// observers.
func (b *Broadcaster) Diagnosticf(format string, args ...any) {
	b.logf(StreamDiagnostic, b.diagnostic, format, args...)
}

// Processf appends to the process stream.
func (b *Broadcaster) Processf(format string, args ...any) {
	b.logf(StreamProcess, b.process, format, args...)
}

// Requestf appends to the request stream.
func (b *Broadcaster) Requestf(format string, args ...any) {
	b.logf(StreamRequest, b.request, format, args...)
}

// StreamLines returns the buffered lines of one stream, oldest first.
func (b *Broadcaster) StreamLines(stream string) []string {
	switch stream {
	case StreamDiagnostic:
		return b.diagnostic.Lines()
	case StreamProcess:
		return b.process.Lines()
	case StreamRequest:
		return b.request.Lines()
	}
	return nil
}

func (b *Broadcaster) logf(stream string, buf *LogBuffer, format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	buf.Append(line)
	b.fanOut(&LogFrame{Type: FrameLog, Stream: stream, Line: line})
}

// fanOut enqueues one frame for every observer. Observers whose queue
// is full are dropped here, never waited on.
func (b *Broadcaster) fanOut(frame any) {
	b.mu.Lock()
	var overflowed []*Observer
	for _, obs := range b.observers {
		if !obs.push(frame) {
			overflowed = append(overflowed, obs)
		}
	}
	for _, obs := range overflowed {
		delete(b.observers, obs.ID)
	}
	b.mu.Unlock()

	for _, obs := range overflowed {
		log.Printf("[broadcast] observer %s dropped: queue full", obs.ID)
		obs.close()
	}
}

// push appends a frame within the queue bound. Reports false on
// overflow or when the observer is already closed.
func (o *Observer) push(frame any) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}
	if len(o.queue) >= o.bound {
		return false
	}
	o.queue = append(o.queue, frame)
	o.cond.Signal()
	return true
}

// pushFront places a frame ahead of anything already queued. Used only
// for the init frame at attach time.
func (o *Observer) pushFront(frame any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.queue = append([]any{frame}, o.queue...)
	o.cond.Signal()
}

// Next blocks until a frame is available or the observer is closed.
// The second return is false once the observer is done.
func (o *Observer) Next() (any, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for len(o.queue) == 0 && !o.closed {
		o.cond.Wait()
	}
	if len(o.queue) == 0 {
		return nil, false
	}
	frame := o.queue[0]
	o.queue = o.queue[1:]
	return frame, true
}

// Closed reports whether the observer has been detached or dropped.
func (o *Observer) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *Observer) close() {
	o.mu.Lock()
	o.closed = true
	o.cond.Broadcast()
	o.mu.Unlock()
}
