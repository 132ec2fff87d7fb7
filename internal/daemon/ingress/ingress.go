// Package ingress accepts hook events over the daemon's unix socket.
// Producers connect, write newline-delimited JSON events, and disconnect
// whenever they like; a malformed line costs only itself.
package ingress

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/emberwatch-io/emberwatch/internal/models"
)

// maxLineSize bounds a single event line. Hook events are small; a line
// this long is a broken producer.
const maxLineSize = 1 << 20

// Handler receives every validated event in arrival order. The registry
// satisfies it.
type Handler interface {
	Apply(evt *models.HookEvent)
}

// Listener owns the unix socket and its connections.
type Listener struct {
	socketPath string
	handler    Handler
	logf       func(format string, args ...any)

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup

	rejected atomic.Int64
}

// Options configures a Listener.
type Options struct {
	SocketPath string
	Handler    Handler
	// Logf receives diagnostic lines about dropped events and failed
	// connections. Defaults to the standard logger.
	Logf func(format string, args ...any)
}

// New creates a listener. Start must be called before events flow.
func New(opts Options) *Listener {
	logf := opts.Logf
	if logf == nil {
		logf = func(format string, args ...any) {
			log.Printf("[ingress] "+format, args...)
		}
	}
	return &Listener{
		socketPath: opts.SocketPath,
		handler:    opts.Handler,
		logf:       logf,
		conns:      map[net.Conn]struct{}{},
	}
}

// Start binds the socket and begins accepting. A bind failure is
// unrecoverable for the daemon and is returned rather than retried.
func (l *Listener) Start() error {
	// A leftover socket from a dead daemon would block the bind.
	if err := os.Remove(l.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing stale socket: %w", err)
	}

	ln, err := net.Listen("unix", l.socketPath)
	if err != nil {
		return fmt.Errorf("binding event socket %s: %w", l.socketPath, err)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		ln.Close()
		return errors.New("listener already closed")
	}
	l.ln = ln
	l.mu.Unlock()

	l.wg.Add(1)
	go l.acceptLoop(ln)

	log.Printf("[ingress] listening on %s", l.socketPath)
	return nil
}

// Close stops accepting, closes every open connection, and waits for
// the connection handlers to drain.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	ln := l.ln
	for conn := range l.conns {
		conn.Close()
	}
	l.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	l.wg.Wait()
	os.Remove(l.socketPath)
	return err
}

// Rejected returns the count of lines dropped for parse or validation
// failures.
func (l *Listener) Rejected() int64 {
	return l.rejected.Load()
}

func (l *Listener) acceptLoop(ln net.Listener) {
	defer l.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if l.isClosed() {
				return
			}
			l.logf("accept failed: %v", err)
			return
		}
		if !l.track(conn) {
			conn.Close()
			return
		}
		l.wg.Add(1)
		go l.serveConn(conn)
	}
}

// serveConn reads newline-delimited events until the producer hangs up.
// A malformed or invalid line is counted and skipped; a transport error
// ends only this connection.
func (l *Listener) serveConn(conn net.Conn) {
	defer l.wg.Done()
	defer l.untrack(conn)
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var evt models.HookEvent
		if err := json.Unmarshal(line, &evt); err != nil {
			l.rejected.Add(1)
			l.logf("dropped unparseable event line: %v", err)
			continue
		}
		if err := evt.Validate(); err != nil {
			l.rejected.Add(1)
			l.logf("dropped invalid event: %v", err)
			continue
		}
		l.handler.Apply(&evt)
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !l.isClosed() {
		l.logf("connection read failed: %v", err)
	}
}

func (l *Listener) track(conn net.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.conns[conn] = struct{}{}
	return true
}

func (l *Listener) untrack(conn net.Conn) {
	l.mu.Lock()
	delete(l.conns, conn)
	l.mu.Unlock()
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
