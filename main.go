package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"circle-arena/arena"
)

// loadOptions reads an optional JSON tuning file over the defaults and
// clamps the result.
func loadOptions(path string, tickRate int) (Options, error) {
	opts := DefaultOptions()
	if tickRate > 0 {
		opts.TickRate = tickRate
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return opts, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, &opts.Arena); err != nil {
			return opts, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	arena.ClampConfig(&opts.Arena)
	if opts.TickRate > 240 {
		opts.TickRate = 240
	}
	return opts, nil
}

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	clientDir := flag.String("client", "", "Path to client directory (default: ../client)")
	dbPath := flag.String("db", ":memory:", "SQLite database path (:memory: keeps nothing across restarts)")
	configPath := flag.String("config", "", "Optional JSON arena tuning file")
	tickRate := flag.Int("tick", DefaultTickRate, "Simulation ticks per second")
	flag.Parse()

	if *clientDir == "" {
		exe, _ := os.Executable()
		*clientDir = filepath.Join(filepath.Dir(exe), "..", "client")
		// Fallback for development
		if _, err := os.Stat(*clientDir); os.IsNotExist(err) {
			*clientDir = "../client"
		}
	}
	// The browser client ships separately; the API and /ws work without it.
	if _, err := os.Stat(filepath.Join(*clientDir, "index.html")); err != nil {
		log.Printf("warning: no index.html in %s, page routes will return 404", *clientDir)
	}

	opts, err := loadOptions(*configPath, *tickRate)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := OpenDB(*dbPath)
	if err != nil {
		log.Fatalf("open db %s: %v", *dbPath, err)
	}

	hub := NewHub(db, opts)
	go hub.Run()

	mux := SetupRoutes(hub, *clientDir)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", *addr)
		log.Printf("Serving client files from %s", *clientDir)
		log.Printf("Arena %vx%v, %d circles max, %d ticks/s", opts.Arena.Width, opts.Arena.Height, opts.Arena.MaxCircles, opts.TickRate)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		server.Close()
	}
	hub.Close()
	if err := db.Close(); err != nil {
		log.Printf("db close: %v", err)
	}
}
