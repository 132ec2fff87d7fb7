// Package server is the daemon's composition root: it wires the event
// socket, the session registry, the observer hub, and the settings
// watcher together, and serves the WebSocket endpoint observers attach
// to.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/emberwatch-io/emberwatch/internal/config"
	"github.com/emberwatch-io/emberwatch/internal/daemon/broadcast"
	"github.com/emberwatch-io/emberwatch/internal/daemon/ingress"
	"github.com/emberwatch-io/emberwatch/internal/daemon/registry"
	"github.com/emberwatch-io/emberwatch/internal/daemon/watcher"
	"github.com/emberwatch-io/emberwatch/internal/models"
)

// shutdownGrace bounds how long observers get to receive their close
// notification before connections are forced shut.
const shutdownGrace = 2 * time.Second

// eventQueueSize bounds the daemon's single mutation queue.
const eventQueueSize = 1024

// Server owns the daemon's runtime state.
type Server struct {
	registry   *registry.Registry
	hub        *broadcast.Broadcaster
	ingress    *ingress.Listener
	watcher    *watcher.Watcher
	runner     HandoffRunner
	httpServer *http.Server
	listener   net.Listener
	port       int

	// events serializes every mutation: ingress lines, observer
	// commands, and watcher notifications all run here, one at a time,
	// fan-out included.
	events chan func()
	done   chan struct{}
}

// Options configures a Server.
type Options struct {
	SocketPath string
	BindAddr   string // host:port, port 0 for dynamic allocation
	Settings   *models.Settings
	Runner     HandoffRunner // nil for the exec default
}

// New creates a server. Pass port 0 in BindAddr for dynamic allocation.
func New(opts Options) (*Server, error) {
	settings := opts.Settings
	if settings == nil {
		settings = models.NewSettings()
	}

	listener, err := (&net.ListenConfig{}).Listen(context.TODO(), "tcp", opts.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	hub := broadcast.NewBroadcaster(broadcast.Options{
		QueueSize:      settings.Observers.QueueSize,
		LogBufferLines: settings.Observers.LogBufferLines,
	})
	reg := registry.New(hub)

	runner := opts.Runner
	if runner == nil {
		runner = NewExecRunner("")
	}

	srv := &Server{
		registry: reg,
		hub:      hub,
		runner:   runner,
		listener: listener,
		port:     port,
		events:   make(chan func(), eventQueueSize),
		done:     make(chan struct{}),
	}

	srv.ingress = ingress.New(ingress.Options{
		SocketPath: opts.SocketPath,
		Handler:    eventSink{srv},
		Logf:       hub.Diagnosticf,
	})

	w, err := watcher.New(settingsSink{srv})
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("creating settings watcher: %w", err)
	}
	srv.watcher = w

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.handleObserver)
	srv.httpServer = &http.Server{Handler: mux}

	return srv, nil
}

// Port returns the port the WebSocket endpoint is listening on.
func (s *Server) Port() int {
	return s.port
}

// Registry returns the session registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Serve starts the event socket, the settings watcher, and the
// WebSocket endpoint. Blocks until Stop is called. The initial
// auto-compact view is read from the assistant settings file before any
// event flows.
func (s *Server) Serve() error {
	if enabled, err := config.LoadAutoCompact(); err == nil {
		s.registry.SetAutoCompact(enabled)
	} else {
		log.Printf("[server] could not read assistant settings: %v", err)
	}

	if err := s.ingress.Start(); err != nil {
		return err
	}
	if err := s.watcher.Start(); err != nil {
		return err
	}
	go s.pumpEvents()

	log.Printf("[server] observer endpoint on port %d", s.port)
	err := s.httpServer.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts the daemon down: stop accepting events, notify observers,
// and force-close whatever remains after the grace period.
func (s *Server) Stop() {
	s.ingress.Close()
	s.watcher.Stop()
	close(s.done)

	// Closing the hub ends every observer's frame stream; their
	// handlers send the close frame and return.
	s.hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.httpServer.Close()
	}
}

// pumpEvents applies queued mutations one at a time. Fan-out happens
// inside each mutation, so frames leave the hub in application order.
func (s *Server) pumpEvents() {
	for {
		select {
		case <-s.done:
			return
		case fn := <-s.events:
			fn()
		}
	}
}

// enqueue adds a mutation to the event queue. A full queue drops the
// mutation with a diagnostic rather than blocking a producer.
func (s *Server) enqueue(fn func()) {
	select {
	case s.events <- fn:
	case <-s.done:
	default:
		s.hub.Diagnosticf("event queue full, mutation dropped")
	}
}

// eventSink adapts the server's event queue to ingress.Handler.
type eventSink struct{ srv *Server }

func (e eventSink) Apply(evt *models.HookEvent) {
	e.srv.enqueue(func() { e.srv.registry.Apply(evt) })
}

// settingsSink adapts the event queue to watcher.Sink.
type settingsSink struct{ srv *Server }

func (w settingsSink) SetAutoCompact(enabled bool) {
	w.srv.enqueue(func() { w.srv.registry.SetAutoCompact(enabled) })
}
