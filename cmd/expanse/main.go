// Package main is the entry point for the Expanse simulation engine.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/expanse-sim/expanse-engine/internal/catalog"
	"github.com/expanse-sim/expanse-engine/internal/config"
	"github.com/expanse-sim/expanse-engine/internal/guard"
	"github.com/expanse-sim/expanse-engine/internal/ipc"
	"github.com/expanse-sim/expanse-engine/internal/sim"
	"github.com/expanse-sim/expanse-engine/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to configuration JSON file")
	fresh := flag.Bool("fresh", false, "ignore saved snapshots and start a new simulation")
	flag.Parse()

	if *showVersion {
		fmt.Printf("expanse %s (commit=%s, built=%s)\n", version, commit, date)
		os.Exit(0)
	}

	// Resolve config path: --config flag > EXPANSE_CONFIG env > auto-discover next to exe.
	path := *configPath
	if path == "" {
		path = os.Getenv("EXPANSE_CONFIG")
	}
	if path == "" {
		path = discoverConfig()
	}
	if path == "" {
		fatal("no config found. Place config.json next to the exe, use --config <path>, or set EXPANSE_CONFIG.")
	}

	cfg, err := config.Load(path)
	if err != nil {
		fatal(fmt.Sprintf("load config: %v", err))
	}

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		cat, err = catalog.Load(cfg.CatalogPath)
		if err != nil {
			fatal(fmt.Sprintf("load catalog: %v", err))
		}
	}

	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	journal := store.NewJournal(db, cfg.SnapshotKeep)

	simulation, err := sim.New(cat, cfg.Physics, log.Default())
	if err != nil {
		fatal(fmt.Sprintf("build simulation: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !*fresh {
		st, err := journal.LoadLatest(ctx, cat.HomeSystemID)
		if err != nil {
			fatal(fmt.Sprintf("load snapshot: %v (start with --fresh to discard it)", err))
		}
		if st != nil {
			if err := simulation.Restore(st); err != nil {
				fatal(fmt.Sprintf("restore snapshot: %v", err))
			}
			log.Printf("restored snapshot at day %.2f", st.SavedAtDay)
		}
	}

	// Tick events go to the event log.
	loop := sim.NewLoop(simulation, time.Duration(cfg.TickIntervalMs)*time.Millisecond, cfg.DaysPerTick,
		func(ch sim.Changes) {
			if _, err := journal.Record(ctx, sim.Events(ch)); err != nil {
				log.Printf("WARN: record events at day %.2f: %v", ch.Day, err)
			}
		})

	g := guard.NewGuard(guard.GuardConfig{
		RatePerSecond: cfg.RateLimitPerSecond,
		Burst:         cfg.RateLimitBurst,
	})

	handler := &ipc.Handler{
		Loop:    loop,
		Journal: journal,
		Guard:   g,
	}
	srv := ipc.NewServer(handler, cfg.ListenAddr)

	go func() {
		if err := loop.Run(ctx); err != nil {
			log.Printf("simulation loop stopped: %v", err)
		}
	}()
	go autosave(ctx, loop, journal, time.Duration(cfg.TickIntervalMs*cfg.SnapshotEveryTicks)*time.Millisecond)
	go sweepClients(ctx, g)

	// Graceful shutdown on interrupt.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Println("shutting down...")
		cancel()

		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("expanse engine listening on %s", ipc.FormatListenURL(cfg.ListenAddr))

	if err := srv.Start(); err != nil && err != http.ErrServerClosed {
		fatal(fmt.Sprintf("server error: %v", err))
	}

	if rec, err := journal.SaveSnapshot(context.Background(), loop.Export()); err != nil {
		log.Printf("final snapshot: %v", err)
	} else {
		log.Printf("saved snapshot %d at day %.2f", rec.ID, rec.SimDay)
	}
}

// autosave writes a snapshot every interval until ctx is done.
func autosave(ctx context.Context, loop *sim.Loop, journal *store.Journal, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := journal.SaveSnapshot(ctx, loop.Export()); err != nil {
				log.Printf("WARN: autosave: %v", err)
			}
		}
	}
}

// sweepClients forgets rate-limit state of idle clients.
func sweepClients(ctx context.Context, g *guard.Guard) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Sweep(10 * time.Minute)
		}
	}
}

// discoverConfig looks for config.json next to the executable, then in the cwd.
func discoverConfig() string {
	// Next to executable.
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "config.json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	// Current working directory.
	if _, err := os.Stat("config.json"); err == nil {
		return "config.json"
	}
	return ""
}

// fatal prints an error and, on Windows, waits for a keypress so the user can
// read the message when the exe is launched by double-click.
func fatal(msg string) {
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", msg)
	if runtime.GOOS == "windows" {
		fmt.Fprintln(os.Stderr, "\nPress Enter to exit...")
		bufio.NewReader(os.Stdin).ReadBytes('\n')
	}
	os.Exit(1)
}
