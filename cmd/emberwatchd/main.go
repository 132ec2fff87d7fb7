// Package main is the entry point for the emberwatchd daemon.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/emberwatch-io/emberwatch/internal/config"
	"github.com/emberwatch-io/emberwatch/internal/daemon/server"
	"github.com/emberwatch-io/emberwatch/internal/models"
)

func main() {
	socketFlag := flag.String("socket", "", "Hook event socket path (default ~/.emberwatch/emberwatch.sock)")
	addrFlag := flag.String("addr", "", "Observer endpoint bind address (default 127.0.0.1:0)")
	handoffFlag := flag.String("handoff", "", "Hand-off helper command (default emberwatch-handoff)")
	flag.Parse()

	log.SetPrefix("[emberwatchd] ")
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	// Ensure global directory exists
	if err := config.EnsureGlobalDir(); err != nil {
		log.Fatalf("Failed to create global directory: %v", err)
	}

	// Check if daemon is already running
	running, info, err := config.IsDaemonRunning()
	if err != nil {
		log.Fatalf("Failed to check daemon status: %v", err)
	}
	if running {
		log.Fatalf("Daemon already running on port %d (PID %d)", info.Port, info.PID)
	}

	settings, err := config.LoadSettings()
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}

	socketPath := *socketFlag
	if socketPath == "" {
		socketPath = settings.Ingress.SocketPath
	}
	if socketPath == "" {
		socketPath, err = config.SocketPath()
		if err != nil {
			log.Fatalf("Failed to resolve socket path: %v", err)
		}
	}

	bindAddr := *addrFlag
	if bindAddr == "" {
		bindAddr = settings.Observers.BindAddr
	}
	if bindAddr == "" {
		bindAddr = "127.0.0.1:0"
	}

	srv, err := server.New(server.Options{
		SocketPath: socketPath,
		BindAddr:   bindAddr,
		Settings:   settings,
		Runner:     server.NewExecRunner(*handoffFlag),
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	daemonInfo := models.NewDaemonInfo(socketPath, "localhost", srv.Port(), os.Getpid())
	if err := config.SaveDaemonInfo(daemonInfo); err != nil {
		log.Fatalf("Failed to write daemon info: %v", err)
	}

	log.Printf("Daemon started on port %d, socket %s (PID %d)", srv.Port(), socketPath, os.Getpid())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case err := <-errCh:
		log.Printf("Server error: %v", err)
	}

	srv.Stop()

	if err := config.RemoveDaemonInfo(); err != nil {
		log.Printf("Failed to remove daemon info: %v", err)
	}

	fmt.Println("Daemon stopped")
}
